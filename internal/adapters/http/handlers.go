package http

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// decodeBody parses the request body as arbitrary JSON.
func decodeBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return fmt.Errorf("request body is required")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

// pointIndex reads the :index route parameter.
func pointIndex(c *fiber.Ctx) (int, error) {
	idx, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return 0, fmt.Errorf("index must be an integer")
	}
	return idx, nil
}

// queryFloat reads a required float query parameter.
func queryFloat(c *fiber.Ctx, key string) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a finite number", key)
	}
	return f, nil
}

// queryCenter reads lat and lng query parameters.
func queryCenter(c *fiber.Ctx) (domain.Coordinate, error) {
	lat, err := queryFloat(c, "lat")
	if err != nil {
		return domain.Coordinate{}, err
	}
	lng, err := queryFloat(c, "lng")
	if err != nil {
		return domain.Coordinate{}, err
	}
	if lat < -90 || lat > 90 {
		return domain.Coordinate{}, fmt.Errorf("lat must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return domain.Coordinate{}, fmt.Errorf("lng must be between -180 and 180")
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, nil
}

// sendJSON writes pre-encoded JSON.
func sendJSON(c *fiber.Ctx, contentType string, data []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

// ValidateHandler runs every validation stage on a document without storing it.
func ValidateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var doc any
		if err := decodeBody(c, &doc); err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(deps.Maps.Validate(c.UserContext(), doc))
	}
}

// ListMapsHandler returns a page of stored maps.
func ListMapsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c)
		maps, total, err := deps.Maps.List(c.UserContext(), offset, limit)
		if err != nil {
			return fromDomain(c, err)
		}
		return sendPage(c, maps, Pagination{Offset: offset, Limit: limit, Total: total})
	}
}

// CreateMapHandler stores a new map document.
func CreateMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var doc any
		if err := decodeBody(c, &doc); err != nil {
			return errBadRequest(c, err.Error())
		}
		info, err := deps.Maps.Create(c.UserContext(), doc)
		if err != nil {
			return fromDomain(c, err)
		}
		c.Location("/v1/maps/" + info.ID)
		return c.Status(201).JSON(info)
	}
}

// GetMapHandler returns a map's metadata.
func GetMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := deps.Maps.Info(c.UserContext(), c.Params("id"))
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(info)
	}
}

// UpdateMapHandler merges top-level fields into a map.
func UpdateMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var patch domain.Patch
		if err := decodeBody(c, &patch); err != nil {
			return errBadRequest(c, err.Error())
		}
		info, err := deps.Maps.UpdateInfo(c.UserContext(), c.Params("id"), patch)
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(info)
	}
}

// DeleteMapHandler removes a map.
func DeleteMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Maps.Delete(c.UserContext(), c.Params("id")); err != nil {
			return fromDomain(c, err)
		}
		return c.SendStatus(204)
	}
}

// ExportMapHandler returns the whole document as JSON, or as a protobuf Struct
// with ?format=proto.
func ExportMapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		switch c.Query("format", "json") {
		case "json":
			data, err := deps.Maps.Serialize(c.UserContext(), id)
			if err != nil {
				return fromDomain(c, err)
			}
			return sendJSON(c, fiber.MIMEApplicationJSONCharsetUTF8, data)
		case "proto":
			data, err := deps.Maps.MarshalProto(c.UserContext(), id)
			if err != nil {
				return fromDomain(c, err)
			}
			c.Set(fiber.HeaderContentType, "application/x-protobuf")
			return c.Send(data)
		default:
			return errBadRequest(c, "format must be json or proto")
		}
	}
}

// GeoJSONHandler returns the points as a GeoJSON FeatureCollection.
func GeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc, err := deps.Maps.GeoJSON(c.UserContext(), c.Params("id"))
		if err != nil {
			return fromDomain(c, err)
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			return fromDomain(c, err)
		}
		return sendJSON(c, "application/geo+json", data)
	}
}

// StatsHandler returns point count, tag counts and coordinate extents.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Maps.Statistics(c.UserContext(), c.Params("id"))
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(stats)
	}
}

// TagsHandler returns tag occurrence counts.
func TagsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tags, err := deps.Maps.TagStatistics(c.UserContext(), c.Params("id"))
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(tags)
	}
}

// ListPointsHandler returns every point of a map.
func ListPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		points, err := deps.Maps.Points(c.UserContext(), c.Params("id"))
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(points)
	}
}

// AddPointHandler appends a point.
func AddPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var point any
		if err := decodeBody(c, &point); err != nil {
			return errBadRequest(c, err.Error())
		}
		id := c.Params("id")
		idx, err := deps.Maps.AddPoint(c.UserContext(), id, point)
		if err != nil {
			return fromDomain(c, err)
		}
		c.Location(fmt.Sprintf("/v1/maps/%s/points/%d", id, idx))
		return c.Status(201).JSON(fiber.Map{"index": idx})
	}
}

// GetPointHandler returns one point.
func GetPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := pointIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		p, err := deps.Maps.Point(c.UserContext(), c.Params("id"), idx)
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(p)
	}
}

// UpdatePointHandler merges fields into one point.
func UpdatePointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := pointIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var patch domain.Patch
		if err := decodeBody(c, &patch); err != nil {
			return errBadRequest(c, err.Error())
		}
		p, err := deps.Maps.UpdatePoint(c.UserContext(), c.Params("id"), idx, patch)
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(p)
	}
}

// DeletePointHandler removes one point.
func DeletePointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idx, err := pointIndex(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if err := deps.Maps.RemovePoint(c.UserContext(), c.Params("id"), idx); err != nil {
			return fromDomain(c, err)
		}
		return c.SendStatus(204)
	}
}

// SearchPointsHandler finds points by case-insensitive name substring.
func SearchPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		if q == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(q) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		points, err := deps.Maps.FindByName(c.UserContext(), c.Params("id"), q)
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(points)
	}
}

// FilterPointsHandler returns points matching every criterion in the body.
func FilterPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var criteria domain.Criteria
		if err := decodeBody(c, &criteria); err != nil {
			return errBadRequest(c, err.Error())
		}
		points, err := deps.Maps.Filter(c.UserContext(), c.Params("id"), criteria)
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(points)
	}
}

// NearbyHandler returns points within radius_km of lat/lng, in storage order.
func NearbyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		center, err := queryCenter(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := 1.0
		if c.Query("radius_km") != "" {
			if radius, err = queryFloat(c, "radius_km"); err != nil {
				return errBadRequest(c, err.Error())
			}
		}
		if radius < 0 || radius > 20100 {
			return errBadRequest(c, "radius_km must be between 0 and 20100")
		}
		points, err := deps.Maps.FindNearby(c.UserContext(), c.Params("id"), center, radius)
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(points)
	}
}

// NearestHandler returns the closest points to lat/lng with their distances.
func NearestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		center, err := queryCenter(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit := c.QueryInt("limit", 10)
		if limit <= 0 || limit > 1000 {
			limit = 10
		}
		out, err := deps.Maps.Nearest(c.UserContext(), c.Params("id"), center, limit)
		if err != nil {
			return fromDomain(c, err)
		}
		return c.JSON(out)
	}
}
