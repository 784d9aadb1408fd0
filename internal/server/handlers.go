package server

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	avatarcropper "github.com/profilekit/avatar-cropper"
	"github.com/profilekit/avatar-cropper/pkg/geometry"
	"github.com/profilekit/avatar-cropper/pkg/gesture"
)

// sessionState is the session view returned by the create and get endpoints.
type sessionState struct {
	ID        string                   `json:"id"`
	Label     string                   `json:"label,omitempty"`
	Geometry  geometry.DisplayGeometry `json:"geometry"`
	Circle    geometry.Circle          `json:"circle"`
	MinRadius float64                  `json:"minRadius"`
	MaxRadius float64                  `json:"maxRadius"`
	Format    string                   `json:"format"`
}

type circleResponse struct {
	Circle geometry.Circle `json:"circle"`
}

type suggestResponse struct {
	Circle      geometry.Circle `json:"circle"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
}

func snapshot(id, label string, session *avatarcropper.Session) sessionState {
	k := session.Constraints()
	return sessionState{
		ID:        id,
		Label:     label,
		Geometry:  session.Geometry(),
		Circle:    session.Circle(),
		MinRadius: k.MinRadius,
		MaxRadius: k.MaxRadius(),
		Format:    string(session.Format()),
	}
}

func stateFor(id string, entry *Entry) sessionState {
	var state sessionState
	entry.Do(func(session *avatarcropper.Session) {
		state = snapshot(id, entry.Label, session)
	})
	return state
}

func (s *Server) entryFor(c *fiber.Ctx) (string, *Entry, error) {
	id := c.Params("id")
	entry, ok := s.registry.Get(id)
	if !ok {
		return "", nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return id, entry, nil
}

// handleCreateSession opens a cropping session from an uploaded image. The
// multipart form carries the file under "image", plus optional "input"
// (pointer or touch) and "label" fields.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing image file")
	}
	if fileHeader.Size > s.config.MaxUploadSize {
		return fiber.ErrRequestEntityTooLarge
	}

	opts := s.config.Options
	switch c.FormValue("input") {
	case "", "pointer":
		opts.Input = avatarcropper.InputPointer
	case "touch":
		opts.Input = avatarcropper.InputTouch
	default:
		return fiber.NewError(fiber.StatusBadRequest, "input must be pointer or touch")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	session, err := avatarcropper.NewSession(data, opts)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	label := c.FormValue("label")
	id := s.registry.Put(session, label)
	s.log.Info().
		Str("session", id).
		Str("input", string(opts.Input)).
		Int64("bytes", fileHeader.Size).
		Msg("session created")

	return c.Status(fiber.StatusCreated).JSON(snapshot(id, label, session))
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id, entry, err := s.entryFor(c)
	if err != nil {
		return err
	}
	return c.JSON(stateFor(id, entry))
}

// handleInput applies one gesture frame and returns the updated circle.
func (s *Server) handleInput(c *fiber.Ctx) error {
	_, entry, err := s.entryFor(c)
	if err != nil {
		return err
	}

	var frame gesture.Frame
	if err := c.BodyParser(&frame); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid gesture frame")
	}

	var circle geometry.Circle
	entry.Do(func(session *avatarcropper.Session) {
		circle = session.HandleFrame(frame)
	})
	return c.JSON(circleResponse{Circle: circle})
}

// handleSuggest repositions the circle automatically. mode=local runs the
// built-in saliency detector; mode=model asks the configured vision backend.
func (s *Server) handleSuggest(c *fiber.Ctx) error {
	_, entry, err := s.entryFor(c)
	if err != nil {
		return err
	}

	resp := suggestResponse{}
	var suggestErr error

	switch mode := c.Query("mode", "local"); mode {
	case "local":
		entry.Do(func(session *avatarcropper.Session) {
			resp.Circle, suggestErr = session.SuggestLocal()
		})
		if suggestErr != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, suggestErr.Error())
		}
	case "model":
		entry.Do(func(session *avatarcropper.Session) {
			circle, placement, err := session.SuggestModel(c.Context())
			if err != nil {
				suggestErr = err
				return
			}
			resp.Circle = circle
			resp.Label = placement.Primary.Label
			resp.Description = placement.Description
		})
		if suggestErr != nil {
			return fiber.NewError(fiber.StatusBadGateway, suggestErr.Error())
		}
	default:
		return fiber.NewError(fiber.StatusBadRequest, "mode must be local or model")
	}

	return c.JSON(resp)
}

// handlePreview renders the source with the selection drawn on top.
func (s *Server) handlePreview(c *fiber.Ctx) error {
	_, entry, err := s.entryFor(c)
	if err != nil {
		return err
	}

	var overlay *image.NRGBA
	entry.Do(func(session *avatarcropper.Session) {
		overlay = session.Preview()
	})

	var buf bytes.Buffer
	if err := png.Encode(&buf, overlay); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}

// handleConfirm renders and returns the encoded avatar. When user_id is
// supplied and a profile client is configured, the avatar is also pushed to
// the profile service before the response is written.
func (s *Server) handleConfirm(c *fiber.Ctx) error {
	_, entry, err := s.entryFor(c)
	if err != nil {
		return err
	}

	var avatar []byte
	var contentType string
	var confirmErr error
	entry.Do(func(session *avatarcropper.Session) {
		avatar, confirmErr = session.Confirm(c.Context())
		contentType = session.Format().ContentType()
	})
	if confirmErr != nil {
		return fmt.Errorf("failed to render avatar: %w", confirmErr)
	}

	if rawUserID := c.Query("user_id"); rawUserID != "" {
		if s.config.Profile == nil {
			return fiber.NewError(fiber.StatusBadRequest, "no profile endpoint configured")
		}
		userID, err := strconv.Atoi(rawUserID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid user_id")
		}
		if err := s.config.Profile.SetAvatar(c.Context(), userID, avatar); err != nil {
			s.log.Error().Err(err).Int("user", userID).Msg("profile update failed")
			return fiber.NewError(fiber.StatusBadGateway, "profile update failed")
		}
		s.log.Info().Int("user", userID).Int("bytes", len(avatar)).Msg("avatar pushed to profile")
	}

	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(avatar)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if !s.registry.Delete(c.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
