package api

import (
	"time"

	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/noteservice"
	"github.com/starford/murmur/internal/topics"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight search hit (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// SearchResponse wraps search results.
type SearchResponse = noteservice.SearchResult

// RebuildResponse is returned after regenerating the topic index report.
type RebuildResponse = noteservice.RebuildResult

// CollectionStatus describes one registered collection.
type CollectionStatus = noteservice.CollectionStatus

// CollectionsResponse wraps the registered collections.
type CollectionsResponse struct {
	Collections []CollectionStatus `json:"collections" validate:"required"`
}

// TopicsResponse is the in-memory topic index.
type TopicsResponse struct {
	Topics      []topics.TopicEntry      `json:"topics" validate:"required"`
	Recent      []NoteListItem           `json:"recent" validate:"required"`
	Collections []topics.CollectionStats `json:"collections" validate:"required"`
	GeneratedAt time.Time                `json:"generated_at"`
	Warnings    []models.Warning         `json:"warnings" validate:"required"`
}

// BacklinksResponse lists the notes linking to a target.
type BacklinksResponse struct {
	Target    string                `json:"target" example:"roadmap" validate:"required"`
	Backlinks []noteservice.NoteRef `json:"backlinks" validate:"required"`
}

// ImportResponse summarizes a recording import run.
type ImportResponse struct {
	RunID   string   `json:"run_id" example:"5f0c..." validate:"required"`
	Fetched int      `json:"fetched" example:"12" validate:"required"`
	Written int      `json:"written" example:"3" validate:"required"`
	Skipped int      `json:"skipped" example:"9" validate:"required"`
	Paths   []string `json:"paths" validate:"required"`
}

func newTopicsResponse(idx *topics.Index, warnings []models.Warning) TopicsResponse {
	recent := make([]NoteListItem, len(idx.Recent))
	for i, d := range idx.Recent {
		recent[i] = NoteListItem{
			Collection: d.Collection,
			Path:       d.Path,
			Title:      d.Title,
			Tags:       nonNil(d.Tags),
			Modified:   d.ModTime,
			Size:       d.Size,
		}
	}
	return TopicsResponse{
		Topics:      nonNil(idx.Topics),
		Recent:      recent,
		Collections: nonNil(idx.Stats),
		GeneratedAt: idx.GeneratedAt,
		Warnings:    nonNil(warnings),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
