package httpserver

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bonusdrive/internal/entry"
	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/repository"
	"github.com/and161185/bonusdrive/internal/sensor"
	"github.com/and161185/bonusdrive/internal/service"
)

// EntryView is an entry as returned by the API. The password never leaves the daemon.
type EntryView struct {
	ID        uuid.UUID     `json:"id"`
	UniqueID  string        `json:"unique_id"`
	Title     string        `json:"title"`
	Email     string        `json:"email"`
	BaseURL   string        `json:"base_url"`
	PhotonURL string        `json:"photon_url,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Status    *entry.Status `json:"status,omitempty"`
}

// TripView is a trip log record.
type TripView struct {
	TripID     string    `json:"trip_id"`
	Score      float64   `json:"score"`
	DistanceKm float64   `json:"distance_km"`
	Duration   string    `json:"duration"`
	DrivenBy   string    `json:"driven_by,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	RecordedAt time.Time `json:"recorded_at"`
}

type createRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	BaseURL   string `json:"base_url"`
	PhotonURL string `json:"photon_url"`
}

type optionsRequest struct {
	PhotonURL *string `json:"photon_url"`
}

type reauthRequest struct {
	Password string `json:"password"`
}

func (s *Server) view(e *model.Entry) EntryView {
	v := EntryView{
		ID:        e.ID,
		UniqueID:  e.UniqueID,
		Title:     e.Title,
		Email:     e.Data.Email,
		BaseURL:   e.Data.BaseURL,
		PhotonURL: e.Data.PhotonURL,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if st, err := s.runtime.Status(e.ID); err == nil {
		v.Status = &st
	}
	return v
}

func entryID(c fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "bad id")
	}
	return id, nil
}

func (s *Server) listEntries(c fiber.Ctx) error {
	list, err := s.entries.List(c.Context())
	if err != nil {
		return err
	}
	out := make([]EntryView, 0, len(list))
	for i := range list {
		out = append(out, s.view(&list[i]))
	}
	return c.JSON(out)
}

func (s *Server) createEntry(c fiber.Ctx) error {
	var req createRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	e, err := s.entries.Create(c.Context(), service.CreateInput{
		Email:     req.Email,
		Password:  req.Password,
		BaseURL:   req.BaseURL,
		PhotonURL: req.PhotonURL,
		Source:    c.IP(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(s.view(e))
}

func (s *Server) getEntry(c fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	e, err := s.entries.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(s.view(e))
}

func (s *Server) deleteEntry(c fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	if err := s.entries.Remove(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) updateOptions(c fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	var req optionsRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	e, err := s.entries.UpdateOptions(c.Context(), id, service.OptionsInput{PhotonURL: req.PhotonURL})
	if err != nil {
		return err
	}
	return c.JSON(s.view(e))
}

func (s *Server) reauth(c fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	var req reauthRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.entries.Reauthenticate(c.Context(), id, req.Password, c.IP()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) refresh(c fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	if err := s.runtime.Refresh(c.Context(), id); err != nil {
		return err
	}
	st, err := s.runtime.Status(id)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (s *Server) states(c fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	states, err := s.runtime.States(id)
	if err != nil {
		return err
	}
	return c.JSON(states)
}

func (s *Server) trips(c fiber.Ctx) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	limit := repository.DefaultTripLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: limit must be a positive integer", errs.ErrInvalidInput)
		}
		limit = n
	}
	recs, err := s.entries.Trips(c.Context(), id, limit)
	if err != nil {
		return err
	}
	out := make([]TripView, 0, len(recs))
	for _, r := range recs {
		out = append(out, TripView{
			TripID:     r.Trip.ID,
			Score:      r.Trip.Score,
			DistanceKm: r.Trip.Kilometers,
			Duration:   sensor.FormatDuration(r.Trip.Seconds),
			DrivenBy:   r.Trip.DriverName,
			StartTime:  r.Trip.StartedAt,
			EndTime:    r.Trip.EndedAt,
			RecordedAt: r.RecordedAt,
		})
	}
	return c.JSON(out)
}
