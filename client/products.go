package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"organic-hub/models"
)

// ProductQuery mirrors the catalog listing query string.
type ProductQuery struct {
	Category string
	Search   string
	Season   string
	Sort     string
	MinPrice *float64
	MaxPrice *float64
	InStock  bool
	Featured bool
	Page     int
	Limit    int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("category", q.Category)
	set("search", q.Search)
	set("season", q.Season)
	set("sort", q.Sort)
	if q.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	if q.InStock {
		v.Set("inStock", "true")
	}
	if q.Featured {
		v.Set("featured", "true")
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

type ProductPage struct {
	Products []models.Product `json:"products"`
	Meta     Meta             `json:"meta"`
}

func (c *Client) Products(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	var page ProductPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products", query: q.values()}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Product(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products/" + url.PathEscape(id)}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Seasonal returns the season the API resolved and its products. An empty
// season asks for the current one.
func (c *Client) Seasonal(ctx context.Context, season string, limit int) (string, []models.Product, error) {
	q := url.Values{}
	if season != "" {
		q.Set("season", season)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var res struct {
		Season   string           `json:"season"`
		Products []models.Product `json:"products"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products/seasonal", query: q}, &res); err != nil {
		return "", nil, err
	}
	return res.Season, res.Products, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	var res struct {
		Categories []models.CategoryCount `json:"categories"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/categories"}, &res); err != nil {
		return nil, err
	}
	return res.Categories, nil
}
