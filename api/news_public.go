package api

import (
	"net/http"
	"time"

	"golang.org/x/text/language"

	"github.com/openconf/regdesk/storage"
)

// newsMatcher negotiates the response language for the public news
// feed against the three languages the content is authored in.
var newsMatcher = language.NewMatcher([]language.Tag{
	language.English, // first entry is the fallback
	language.Russian,
	language.Uzbek,
})

// PublicNews handles GET /news: published items only, title and content
// selected by Accept-Language. Store failures degrade to an empty list.
func (a *API) PublicNews(w http.ResponseWriter, r *http.Request) {
	items, err := a.repo.News().ListPublished(r.Context())
	if err != nil {
		a.audit.logger.ErrorContext(r.Context(), "news list", "error", err)
		writeJSON(w, http.StatusInternalServerError, []LocalizedNewsItem{})
		return
	}

	tags, _, _ := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	_, index, _ := newsMatcher.Match(tags...)

	out := make([]LocalizedNewsItem, 0, len(items))
	for _, item := range items {
		out = append(out, localizeNews(item, index))
	}
	writeJSON(w, http.StatusOK, out)
}

func localizeNews(item storage.NewsItem, langIndex int) LocalizedNewsItem {
	title, content := item.TitleEN, item.ContentEN
	switch langIndex {
	case 1:
		title, content = item.TitleRU, item.ContentRU
	case 2:
		title, content = item.TitleUZ, item.ContentUZ
	}
	// Untranslated items fall back to English rather than going blank.
	if title == "" && content == "" {
		title, content = item.TitleEN, item.ContentEN
	}
	return LocalizedNewsItem{
		ID:          item.ID,
		Title:       title,
		Content:     content,
		PublishedAt: item.PublishedAt.UTC().Format(time.RFC3339),
	}
}
