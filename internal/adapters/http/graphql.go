package http

import (
	"encoding/json"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/metamap/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema wired to the map service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"name":    &graphql.Field{Type: graphql.String},
			"address": &graphql.Field{Type: graphql.String},
			"intro":   &graphql.Field{Type: graphql.String},
			"center":  &graphql.Field{Type: coordinateType},
			"tags":    &graphql.Field{Type: graphql.NewList(graphql.String)},
			"phone":   &graphql.Field{Type: graphql.String},
			"webName": &graphql.Field{Type: graphql.String},
			"webLink": &graphql.Field{Type: graphql.String},
			"extra": &graphql.Field{
				Type:        graphql.String,
				Description: "Additional fields encoded as a JSON object",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					dp, ok := p.Source.(domain.DataPoint)
					if !ok || len(dp.Extra) == 0 {
						return nil, nil
					}
					b, err := json.Marshal(dp.Extra)
					if err != nil {
						return nil, err
					}
					return string(b), nil
				},
			},
		},
	})

	nearestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearestPoint",
		Fields: graphql.Fields{
			"index":       &graphql.Field{Type: graphql.Int},
			"point":       &graphql.Field{Type: pointType},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	mapType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Map",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"origin":      &graphql.Field{Type: graphql.String},
			"center":      &graphql.Field{Type: coordinateType},
			"zoom": &graphql.Field{
				Type:        graphql.NewList(graphql.Int),
				Description: "Default, minimum and maximum zoom levels",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					info, ok := p.Source.(domain.MapInfo)
					if !ok || info.Zoom == nil {
						return nil, nil
					}
					return info.Zoom[:], nil
				},
			},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapSummary",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"points":     &graphql.Field{Type: graphql.Int},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	tagCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TagCount",
		Fields: graphql.Fields{
			"tag":   &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	extentsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Extents",
		Fields: graphql.Fields{
			"northernmost": &graphql.Field{Type: graphql.Float},
			"southernmost": &graphql.Field{Type: graphql.Float},
			"easternmost":  &graphql.Field{Type: graphql.Float},
			"westernmost":  &graphql.Field{Type: graphql.Float},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Statistics",
		Fields: graphql.Fields{
			"totalPoints": &graphql.Field{Type: graphql.Int},
			"tags":        &graphql.Field{Type: graphql.NewList(tagCountType)},
			"coordinates": &graphql.Field{Type: extentsType},
		},
	})

	validationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ValidationResult",
		Fields: graphql.Fields{
			"valid":  &graphql.Field{Type: graphql.Boolean},
			"errors": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	idArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"maps": &graphql.Field{
				Type:        graphql.NewList(summaryType),
				Description: "List stored maps",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					maps, _, err := deps.Maps.List(p.Context, p.Args["offset"].(int), p.Args["limit"].(int))
					return maps, err
				},
			},
			"map": &graphql.Field{
				Type:        mapType,
				Description: "Get a map's metadata by ID",
				Args:        graphql.FieldConfigArgument{"id": idArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.Info(p.Context, p.Args["id"].(string))
				},
			},
			"points": &graphql.Field{
				Type:        graphql.NewList(pointType),
				Description: "All points of a map in storage order",
				Args:        graphql.FieldConfigArgument{"id": idArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.Points(p.Context, p.Args["id"].(string))
				},
			},
			"searchPoints": &graphql.Field{
				Type:        graphql.NewList(pointType),
				Description: "Points whose name contains query, ignoring case",
				Args: graphql.FieldConfigArgument{
					"id":    idArg,
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.FindByName(p.Context, p.Args["id"].(string), p.Args["query"].(string))
				},
			},
			"nearby": &graphql.Field{
				Type:        graphql.NewList(pointType),
				Description: "Points within radiusKm of a location",
				Args: graphql.FieldConfigArgument{
					"id":       idArg,
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radiusKm": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.Coordinate{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)}
					return deps.Maps.FindNearby(p.Context, p.Args["id"].(string), center, p.Args["radiusKm"].(float64))
				},
			},
			"nearest": &graphql.Field{
				Type:        graphql.NewList(nearestType),
				Description: "Closest points to a location",
				Args: graphql.FieldConfigArgument{
					"id":    idArg,
					"lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.Coordinate{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)}
					return deps.Maps.Nearest(p.Context, p.Args["id"].(string), center, p.Args["limit"].(int))
				},
			},
			"statistics": &graphql.Field{
				Type:        statsType,
				Description: "Point count, tag counts and coordinate extents",
				Args:        graphql.FieldConfigArgument{"id": idArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					stats, err := deps.Maps.Statistics(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"totalPoints": stats.TotalPoints,
						"tags":        tagCounts(stats.Tags),
						"coordinates": stats.Coordinates,
					}, nil
				},
			},
			"validate": &graphql.Field{
				Type:        validationType,
				Description: "Validate a document given as a JSON string without storing it",
				Args: graphql.FieldConfigArgument{
					"document": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var doc any
					if err := json.Unmarshal([]byte(p.Args["document"].(string)), &doc); err != nil {
						return domain.Invalid("document: invalid JSON: " + err.Error()), nil
					}
					return deps.Maps.Validate(p.Context, doc), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// tagCounts flattens a tag histogram into a list sorted by tag.
func tagCounts(tags map[string]int) []map[string]interface{} {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]interface{}{"tag": k, "count": tags[k]})
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
