package httpapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/common"
	"github.com/i474232898/weather-lookup/internal/forecast"
	"github.com/i474232898/weather-lookup/internal/screen"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// IPLocator builds a one-shot locator for a client address. An empty address means the
// caller's public address as seen by the locator service.
type IPLocator interface {
	ForIP(ip string) weather.Locator
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. ipLocator may be nil, in which
// case sessions can only be located from client-supplied coordinates.
func RegisterRoutes(app *fiber.App, service *weather.Service, sessions *store.MemoryStore, ipLocator IPLocator) {
	v1 := app.Group("/api/v1")

	v1.Get("/places/search", func(c *fiber.Ctx) error {
		var q searchQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		places, err := service.Search(c.UserContext(), q.Name, q.Count)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to search places")
		}

		return c.JSON(fiber.Map{
			"query":   q.Name,
			"results": places,
		})
	})

	v1.Get("/places/reverse", func(c *fiber.Ctx) error {
		coords, err := parseCoordinates(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		place, err := service.Reverse(c.UserContext(), coords)
		if err != nil {
			if errors.Is(err, weather.ErrNoResults) {
				return fiber.NewError(fiber.StatusNotFound, "no place found for coordinates")
			}
			return fiber.NewError(fiber.StatusBadGateway, "failed to reverse geocode coordinates")
		}

		return c.JSON(place)
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		coords, err := parseCoordinates(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		place := weather.Place{
			Name:      strings.TrimSpace(c.Query("name")),
			Latitude:  coords.Latitude,
			Longitude: coords.Longitude,
		}
		if place.Name == "" {
			place.Name = screen.CurrentLocationName
		}

		snapshot, err := service.Forecast(c.UserContext(), place)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, forecast.FailureMessage)
		}

		return c.JSON(fiber.Map{
			"place":   place,
			"weather": snapshot,
			"view":    weather.BuildView(place, snapshot, weather.DefaultChart),
		})
	})

	s := v1.Group("/sessions")

	s.Post("/", func(c *fiber.Ctx) error {
		sess := sessions.Create()
		return c.Status(fiber.StatusCreated).JSON(sessionResponse{ID: sess.ID, State: sess.Screen.State()})
	})

	s.Get("/:id", func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}
		return c.JSON(sessionResponse{ID: sess.ID, State: sess.Screen.State()})
	})

	s.Put("/:id/query", func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}

		var req queryRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sess.Screen.SetQuery(req.Query)
		return c.Status(fiber.StatusAccepted).JSON(sessionResponse{ID: sess.ID, State: sess.Screen.State()})
	})

	s.Post("/:id/select", func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}

		var req selectRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := req.validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if req.Place != nil {
			sess.Screen.Select(req.Place.toPlace())
		} else if _, err := sess.Screen.SelectSuggestion(*req.Index); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.Status(fiber.StatusAccepted).JSON(sessionResponse{ID: sess.ID, State: sess.Screen.State()})
	})

	s.Post("/:id/reload", func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}

		if err := sess.Screen.Reload(); err != nil {
			if errors.Is(err, forecast.ErrNoPlace) {
				return fiber.NewError(fiber.StatusConflict, "no place selected")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to reload forecast")
		}

		return c.Status(fiber.StatusAccepted).JSON(sessionResponse{ID: sess.ID, State: sess.Screen.State()})
	})

	s.Post("/:id/locate", func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, sessions)
		if err != nil {
			return err
		}

		var req locateRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
			if err := req.validate(); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}

		var locator weather.Locator
		switch {
		case req.Latitude != nil:
			locator = weather.FixedLocator(weather.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude})
		case ipLocator != nil:
			ip := c.IP()
			if common.IsLocalAddr(ip) {
				ip = ""
			}
			locator = ipLocator.ForIP(ip)
		}

		if err := sess.Screen.UseMyLocation(locator); err != nil {
			if errors.Is(err, weather.ErrGeolocationUnsupported) {
				return fiber.NewError(fiber.StatusNotImplemented, "Geolocation is not supported")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.Status(fiber.StatusAccepted).JSON(sessionResponse{ID: sess.ID, State: sess.Screen.State()})
	})

	s.Delete("/:id", func(c *fiber.Ctx) error {
		if err := sessions.Delete(c.Params("id")); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "session not found")
			}
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type sessionResponse struct {
	ID string `json:"id"`
	screen.State
}

func lookupSession(c *fiber.Ctx, sessions *store.MemoryStore) (*store.Session, error) {
	sess, err := sessions.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return nil, err
	}
	return sess, nil
}

// searchQuery holds query parameters for the place search endpoint.
type searchQuery struct {
	Name  string `validate:"required,min=2,max=200"`
	Count int    `validate:"omitempty,min=1,max=10"`
}

func (q *searchQuery) bind(c *fiber.Ctx) error {
	q.Name = strings.TrimSpace(c.Query("name"))
	if v := c.Query("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("count must be an integer")
		}
		q.Count = n
	}
	return validate.Struct(q)
}

// coordinatesQuery holds latitude and longitude query parameters.
type coordinatesQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

func parseCoordinates(c *fiber.Ctx) (weather.Coordinates, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return weather.Coordinates{}, errors.New("lat and lon query parameters are required")
	}

	var q coordinatesQuery
	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return weather.Coordinates{}, errors.New("lat must be a number")
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return weather.Coordinates{}, errors.New("lon must be a number")
	}
	if err := validate.Struct(q); err != nil {
		return weather.Coordinates{}, err
	}

	return weather.Coordinates{Latitude: q.Lat, Longitude: q.Lon}, nil
}

type queryRequest struct {
	Query string `json:"query" validate:"max=200"`
}

type placeBody struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name" validate:"required"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Timezone  string  `json:"timezone"`
}

func (p placeBody) toPlace() weather.Place {
	return weather.Place{
		ID:        p.ID,
		Name:      p.Name,
		Country:   p.Country,
		Admin1:    p.Admin1,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timezone:  p.Timezone,
	}
}

// selectRequest picks either a current suggestion by index or an explicit place.
type selectRequest struct {
	Index *int       `json:"index" validate:"omitempty,gte=0"`
	Place *placeBody `json:"place"`
}

func (r selectRequest) validate() error {
	if (r.Index == nil) == (r.Place == nil) {
		return errors.New("exactly one of index or place is required")
	}
	return validate.Struct(r)
}

type locateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

func (r locateRequest) validate() error {
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return errors.New("latitude and longitude must be provided together")
	}
	return validate.Struct(r)
}
