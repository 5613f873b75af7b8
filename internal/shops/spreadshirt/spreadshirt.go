package spreadshirt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/logging"
	"podflow/internal/services"
	"podflow/internal/shop"
)

const (
	partnerURL   = "https://partner.spreadshirt.de/designs"
	uploadTile   = ".card-container.upload-tile"
	hiddenInput  = "#hiddenFileInput"
	previewDone  = ".preview-image-loader"
	uploadError  = ".design-upload-progress-bar.upload-error"
	uploadDetail = ".design-upload-message.text-sm"

	titleInput       = "#input-design-name"
	descriptionInput = "#input-design-description"
	tagsInput        = "div.dropdown-button input.dropdown-input"
	titleError       = "small.error-info.error-info-name"
	descriptionError = "small.error-info.error-info-description"
	publishButton    = "#account-settings-save-button"
	publishedBanner  = ".design-publish-success"

	dailyLimitText  = "Du hast das tägliche Limit für Uploads erreicht."
	forbiddenPrefix = "Folgende Begriffe sind nicht erlaubt: "

	maxTitleLen         = 50
	forbiddenWordRounds = 3
	searchCountSelector = ".design-list-count strong"
)

var whitespace = regexp.MustCompile(`\s+`)

// Shop publishes assets to the Spreadshirt partner marketplace.
type Shop struct {
	cfg    *config.Config
	logger *slog.Logger
	titler cases.Caser
}

// New builds the spreadshirt shop adapter.
func New(cfg *config.Config, logger *slog.Logger) *Shop {
	return &Shop{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "shop-spreadshirt"),
		titler: cases.Title(language.English),
	}
}

func (s *Shop) Name() string { return "spreadshirt" }
func (s *Shop) Site() string { return "spreadshirt" }

// Authenticate opens the partner area and selects the template every
// submission in this batch runs against.
func (s *Shop) Authenticate(ctx context.Context, session browser.Session) (*shop.Template, error) {
	if err := session.Navigate(ctx, partnerURL); err != nil {
		return nil, err
	}
	if err := session.WaitVisible(ctx, uploadTile); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "shop-spreadshirt", "authenticate",
			"partner area not reachable, session may be expired, re-run verifysite spreadshirt", err)
	}

	templates, err := s.listTemplates(ctx, session)
	if err != nil {
		return nil, err
	}
	selected, err := shop.SelectTemplate(templates, s.cfg.Upload.TemplateMinProducts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("template selected",
		logging.String("template_id", selected.ID),
		logging.Int("product_count", selected.ProductCount))
	return selected, nil
}

// listTemplates reads the partner templates with their product counts.
func (s *Shop) listTemplates(ctx context.Context, session browser.Session) ([]shop.Template, error) {
	value, err := session.Eval(ctx, `(() => {
  return Array.from(document.querySelectorAll('.design-template-card')).map((card) => ({
    id: card.dataset.templateId,
    created_at: card.dataset.createdAt,
    product_count: parseInt(card.querySelector('.sellable-count strong')?.textContent || '0', 10),
  }));
})()`)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ID           string `json:"id"`
		CreatedAt    string `json:"created_at"`
		ProductCount int    `json:"product_count"`
	}
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil, fmt.Errorf("decode template list: %w", err)
	}
	templates := make([]shop.Template, 0, len(raw))
	for _, entry := range raw {
		tpl := shop.Template{ID: entry.ID, ProductCount: entry.ProductCount}
		tpl.CreatedAt, _ = parseTemplateTime(entry.CreatedAt)
		templates = append(templates, tpl)
	}
	return templates, nil
}

// AlreadySubmitted searches the design list for the asset's title.
func (s *Shop) AlreadySubmitted(ctx context.Context, session browser.Session, a *asset.Asset) (bool, error) {
	searchURL := partnerURL + "?q=" + queryEscape(a.Meta.Title)
	if err := session.Navigate(ctx, searchURL); err != nil {
		return false, err
	}
	text, err := session.Text(ctx, searchCountSelector)
	if err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	return text != "" && text != "0", nil
}

// Submit uploads the image, fills the design fields, and publishes.
func (s *Shop) Submit(ctx context.Context, session browser.Session, a *asset.Asset, tpl *shop.Template) error {
	if err := session.Navigate(ctx, partnerURL); err != nil {
		return err
	}
	if err := session.Click(ctx, uploadTile); err != nil {
		return err
	}
	if err := session.Upload(ctx, hiddenInput, a.ImagePath); err != nil {
		return err
	}
	if err := session.WaitVisible(ctx, previewDone); err != nil {
		return s.checkUploadFailure(ctx, session, err)
	}

	title := truncateTitle(s.titler.String(strings.TrimSpace(a.Meta.Title)))
	if err := s.fillField(ctx, session, titleInput, titleError, title); err != nil {
		return err
	}
	if err := s.fillField(ctx, session, descriptionInput, descriptionError, a.Meta.Description); err != nil {
		return err
	}
	if err := s.fillTags(ctx, session, a.Meta.Tags); err != nil {
		return err
	}
	if err := s.selectTemplate(ctx, session, tpl); err != nil {
		return err
	}
	if err := session.Click(ctx, publishButton); err != nil {
		return err
	}
	if err := session.WaitVisible(ctx, publishedBanner); err != nil {
		return err
	}
	s.logger.Info("design published",
		logging.String(logging.FieldAssetID, a.ID),
		logging.String("title", title))
	return nil
}

// checkUploadFailure distinguishes the daily limit from ordinary upload
// errors. The limit aborts the whole batch.
func (s *Shop) checkUploadFailure(ctx context.Context, session browser.Session, cause error) error {
	if err := session.WaitVisible(ctx, uploadError); err != nil {
		return cause
	}
	detail, err := session.Text(ctx, uploadDetail)
	if err != nil {
		return cause
	}
	if strings.Contains(detail, dailyLimitText) {
		return fmt.Errorf("%w: %s", shop.ErrDailyLimit, detail)
	}
	return services.Wrap(services.ErrTransient, "shop-spreadshirt", "upload", detail, cause)
}

// fillField enters a value and strips any words the shop rejects, re-entering
// the cleaned text. Gives up after a few rounds.
func (s *Shop) fillField(ctx context.Context, session browser.Session, input, errorSelector, value string) error {
	for round := 0; round < forbiddenWordRounds; round++ {
		if err := session.SendKeys(ctx, input, value); err != nil {
			return err
		}
		errorText, err := session.Text(ctx, errorSelector)
		if err != nil {
			return err
		}
		errorText = strings.TrimSpace(errorText)
		if errorText == "" {
			return nil
		}
		if !strings.HasPrefix(errorText, forbiddenPrefix) {
			return services.Wrap(services.ErrValidation, "shop-spreadshirt", "fill field", errorText, nil)
		}
		cleaned := stripForbiddenWords(value, errorText[len(forbiddenPrefix):])
		if cleaned == value {
			break
		}
		s.logger.Warn("removed rejected words", logging.String("field", input))
		value = cleaned
	}
	return services.Wrap(services.ErrValidation, "shop-spreadshirt", "fill field",
		"field still rejected after removing flagged words", nil)
}

func (s *Shop) fillTags(ctx context.Context, session browser.Session, tags []string) error {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if err := session.SendKeys(ctx, tagsInput, tag+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// selectTemplate applies the chosen template to the new design.
func (s *Shop) selectTemplate(ctx context.Context, session browser.Session, tpl *shop.Template) error {
	if tpl == nil {
		return services.Wrap(services.ErrValidation, "shop-spreadshirt", "select template", "no template selected", nil)
	}
	_, err := session.Eval(ctx, fmt.Sprintf(
		`document.querySelector('.design-template-card[data-template-id=%q] button').click()`, tpl.ID))
	return err
}

// stripForbiddenWords removes every flagged word case-insensitively and
// collapses the leftover whitespace.
func stripForbiddenWords(value, flagged string) string {
	for _, word := range strings.Split(flagged, ",") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(word))
		value = pattern.ReplaceAllString(value, "")
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(value, " "))
}

func parseTemplateTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}

// truncateTitle enforces the shop's title limit on rune boundaries, so a
// multi-byte character is never split into invalid UTF-8.
func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	return strings.TrimSpace(string(runes[:maxTitleLen]))
}

func queryEscape(value string) string {
	return url.QueryEscape(strings.TrimSpace(value))
}

var _ shop.Adapter = (*Shop)(nil)
