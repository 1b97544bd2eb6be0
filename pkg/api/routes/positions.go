package routes

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slices"
)

type PositionReader interface {
	List(ctx context.Context, city ctdf.City) ([]*ctdf.VehiclePosition, error)
	FindByTrip(ctx context.Context, tripRef primitive.ObjectID) (*ctdf.VehiclePosition, error)
}

func PositionsRouter(router fiber.Router, positions PositionReader) {
	router.Get("/", listPositions(positions))
	router.Get("/trip/:tripRef", getTripPosition(positions))
}

type bounds struct {
	minLon, minLat, maxLon, maxLat float64
}

func parseBounds(boundsQuery string) (*bounds, bool) {
	boundsQuerySplit := strings.Split(boundsQuery, ",")
	if len(boundsQuerySplit) != 4 {
		return nil, false
	}

	values := make([]float64, 4)
	for i, coordinate := range boundsQuerySplit {
		value, err := strconv.ParseFloat(strings.TrimSpace(coordinate), 64)
		if err != nil {
			return nil, false
		}
		values[i] = value
	}

	return &bounds{minLon: values[0], minLat: values[1], maxLon: values[2], maxLat: values[3]}, true
}

func reductionGroups(c *fiber.Ctx) []string {
	if c.QueryBool("detailed") {
		return []string{"basic", "detailed"}
	}

	return []string{"basic"}
}

func listPositions(positions PositionReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		city := ctdf.City(c.Query("city"))
		if city != "" && !slices.Contains(ctdf.KnownCities, city) {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Unknown city",
			})
		}

		var area *bounds
		if boundsQuery := c.Query("bounds"); boundsQuery != "" {
			var ok bool
			area, ok = parseBounds(boundsQuery)
			if !ok {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Bounds must contain 4 co-ordinates",
				})
			}
		}

		records, err := positions.List(c.UserContext(), city)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list vehicle positions")

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not list vehicle positions",
			})
		}

		matching := []*ctdf.VehiclePosition{}
		for _, record := range records {
			if area == nil || record.CurrentPosition.Within(area.minLon, area.minLat, area.maxLon, area.maxLat) {
				matching = append(matching, record)
			}
		}

		positionsReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: reductionGroups(c),
		}, matching)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce vehicle positions",
			})
		}

		return c.JSON(positionsReduced)
	}
}

func getTripPosition(positions PositionReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tripRef, err := primitive.ObjectIDFromHex(c.Params("tripRef"))
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Trip reference is not a valid identifier",
			})
		}

		record, err := positions.FindByTrip(c.UserContext(), tripRef)
		if err != nil {
			log.Error().Err(err).Str("tripref", tripRef.Hex()).Msg("Failed to find vehicle position")

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not load vehicle position",
			})
		}

		if record == nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find a vehicle position for this trip",
			})
		}

		positionReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic", "detailed"},
		}, record)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce vehicle position",
			})
		}

		return c.JSON(positionReduced)
	}
}
