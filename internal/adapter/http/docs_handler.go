package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type DocsSection struct {
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

type DocsPage struct {
	Title    string        `json:"title"`
	Sections []DocsSection `json:"sections"`
}

var docsPage = DocsPage{
	Title: "DOCUMENTATION",
	Sections: []DocsSection{
		{Title: "API Reference", Anchor: "#api-reference"},
		{Title: "Integration Guide", Anchor: "#integration-guide"},
		{Title: "FAQs", Anchor: "#faqs"},
	},
}

// Docs serves the static documentation landing page.
func (h *Handler) Docs(c echo.Context) error {
	return c.JSON(http.StatusOK, docsPage)
}
