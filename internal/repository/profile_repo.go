package repository

import (
	"context"
	"time"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

// ProfileRepository reads the user/nutritionist profile collection owned by
// the account service. The chat core only resolves display names, roles and
// presence from it.
type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, role, display_name, specialization, status, last_seen, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var profile models.Profile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Role,
		&profile.DisplayName,
		&profile.Specialization,
		&profile.Status,
		&profile.LastSeen,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *ProfileRepository) UpdatePresence(
	ctx context.Context,
	nutritionistID string,
	status string,
	lastSeen time.Time,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE profiles
		SET status = $2,
		    last_seen = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND role = 'nutritionist'
	`, nutritionistID, status, lastSeen)
	return err
}

func (r *ProfileRepository) GetPresence(
	ctx context.Context,
	nutritionistID string,
) (*models.Presence, error) {
	query := `
		SELECT id, status, COALESCE(last_seen, created_at)
		FROM profiles
		WHERE id = $1
		  AND role = 'nutritionist'
	`

	var presence models.Presence
	err := r.db.QueryRow(ctx, query, nutritionistID).Scan(
		&presence.NutritionistID,
		&presence.Status,
		&presence.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return &presence, nil
}
