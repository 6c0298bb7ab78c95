package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"natours_echo/internal/models"
)

func TestOverview(t *testing.T) {
	tours := []models.Tour{
		{Name: "The Forest Hiker", Slug: "the-forest-hiker", Price: 397, Difficulty: models.DifficultyEasy, Duration: 5},
		{Name: "The Sea Explorer", Slug: "the-sea-explorer", Price: 497, Difficulty: models.DifficultyMedium, Duration: 7},
	}

	html, err := RenderString(context.Background(), Overview(OverviewProps{Layout: Layout{Title: "All Tours"}, Tours: tours}))
	require.NoError(t, err)
	assert.Contains(t, html, "<title>Natours | All Tours</title>")
	assert.Contains(t, html, "The Forest Hiker")
	assert.Contains(t, html, `href="/tour/the-sea-explorer"`)
	assert.NotContains(t, html, "No tours available")

	html, err = RenderString(context.Background(), Overview(OverviewProps{Layout: Layout{Title: "All Tours"}}))
	require.NoError(t, err)
	assert.Contains(t, html, "No tours available right now.")
}

func TestTourDetail(t *testing.T) {
	tour := models.Tour{
		Base:           models.Base{ID: "tour-1"},
		Name:           "The Forest Hiker",
		Duration:       5,
		Difficulty:     models.DifficultyEasy,
		RatingsAverage: 4.8,
		Description:    "First line.\n\n  Second line.  ",
		Images:         datatypes.JSONSlice[string]{"tour-1-1.jpg", "tour-1-2.jpg"},
		StartLocation:  datatypes.NewJSONType(models.GeoPoint{Type: "Point", Description: "Banff, CAN"}),
		Guides: models.Guides{
			{Name: "Miyah Myles", Role: models.RoleLeadGuide},
			{Name: "Steve T. Williams", Role: models.RoleGuide},
		},
	}
	reviews := []models.Review{
		{Review: "Amazing tour", Rating: 5, Author: &models.User{Name: "Lourdes Browning", Photo: "user-2.jpg"}},
		{Review: "No author", Rating: 4},
	}
	props := TourProps{Layout: Layout{Title: "The Forest Hiker"}, Tour: tour, Reviews: reviews, SnapScriptURL: "https://app.sandbox.midtrans.com/snap/snap.js", ClientKey: "client-key"}

	html, err := RenderString(context.Background(), TourDetail(props))
	require.NoError(t, err)
	assert.Contains(t, html, "<span>The Forest Hiker tour</span>")
	assert.Contains(t, html, "Banff, CAN")
	assert.Contains(t, html, "Rating: 4.8 / 5")
	assert.Contains(t, html, "Next date: To be announced")
	assert.Contains(t, html, `<p class="description__text">First line.</p><p class="description__text">Second line.</p>`)
	assert.Contains(t, html, `alt="The Forest Hiker 1"`)
	assert.Contains(t, html, "Lead guide</span>")
	assert.Contains(t, html, "Tour guide</span>")
	assert.Contains(t, html, "Lourdes Browning")
	assert.Contains(t, html, "Log in to book tour")
	assert.NotContains(t, html, "snap.js")

	props.User = &models.User{Name: "Laura Wilson"}
	html, err = RenderString(context.Background(), TourDetail(props))
	require.NoError(t, err)
	assert.Contains(t, html, `data-tour-id="tour-1"`)
	assert.Contains(t, html, `data-client-key="client-key"`)
	assert.NotContains(t, html, "Log in to book tour")
}

func TestLayoutShowsUser(t *testing.T) {
	user := &models.User{Name: "Laura Wilson", Photo: "user-1.jpg"}

	html, err := RenderString(context.Background(), Login(Layout{Title: "Log into your account", User: user}))
	require.NoError(t, err)
	assert.Contains(t, html, "/img/users/user-1.jpg")
	assert.Contains(t, html, "<span>Laura</span>")
}

func TestErrorPage(t *testing.T) {
	html, err := RenderString(context.Background(), ErrorPage(ErrorPageProps{
		Layout:  Layout{Title: "Something went wrong!"},
		Code:    404,
		Message: "There is no tour with that name.",
	}))
	require.NoError(t, err)
	assert.Contains(t, html, "404")
	assert.Contains(t, html, "There is no tour with that name.")
}

func TestErrorPageEscapesMessage(t *testing.T) {
	html, err := RenderString(context.Background(), ErrorPage(ErrorPageProps{Code: 400, Message: "<script>alert(1)</script>"}))
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestEmail(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{
			name:     "welcome",
			template: EmailWelcome,
			want:     []string{"Hi Laura,", `href="http://localhost:3000/me"`},
		},
		{
			name:     "password reset",
			template: EmailPasswordReset,
			want:     []string{"Hi Laura,", "http://localhost:3000/me"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Email(tt.template, NewEmailProps("Laura Wilson", "http://localhost:3000/me"))
			require.True(t, ok)
			html, err := RenderString(context.Background(), c)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, html, w)
			}
		})
	}

	_, ok := Email("newsletter", EmailProps{})
	assert.False(t, ok)
}

func TestEmailRejectsUnsafeURL(t *testing.T) {
	c, ok := Email(EmailWelcome, NewEmailProps("Laura Wilson", "javascript:alert(1)"))
	require.True(t, ok)
	html, err := RenderString(context.Background(), c)
	require.NoError(t, err)
	assert.NotContains(t, html, "javascript:")
}

func TestNewEmailProps(t *testing.T) {
	assert.Equal(t, "Laura", NewEmailProps("Laura Wilson", "").FirstName)
	assert.Equal(t, "Jonas", NewEmailProps("  Jonas  ", "").FirstName)
	assert.Equal(t, "", NewEmailProps("", "").FirstName)
}
