package handlers

import (
	"strconv"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50
)

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func buildPaginationMeta(page, limit, count int) models.PaginationMeta {
	return models.PaginationMeta{
		Page:  page,
		Limit: limit,
		Count: count,
	}
}
