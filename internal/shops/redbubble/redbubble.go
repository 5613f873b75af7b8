package redbubble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/logging"
	"podflow/internal/services"
	"podflow/internal/settings"
	"podflow/internal/shop"
)

const (
	uploadURL    = "https://www.redbubble.com/portfolio/images/new"
	portfolioURL = "https://www.redbubble.com/portfolio/manage_works"

	fileInput        = "#select-image-base"
	titleInput       = "#work_title_en"
	descriptionInput = "#work_description_en"
	tagsInput        = "#work_tag_field_en"
	rightsCheckbox   = "#rightsDeclaration"
	publishButton    = "#submit-work"
	publishedBanner  = ".works_show"
	searchResults    = ".works-manage .work"
)

// productToggles maps the settings product names to the enable checkboxes on
// the upload form.
var productToggles = map[string]string{
	"sticker":    "#work_sticker_enabled",
	"tshirt":     "#work_tshirt_enabled",
	"poster":     "#work_poster_enabled",
	"mug":        "#work_mug_enabled",
	"phone-case": "#work_phone_case_enabled",
	"tote-bag":   "#work_tote_bag_enabled",
	"notebook":   "#work_notebook_enabled",
	"pillow":     "#work_throw_pillow_enabled",
}

// Shop publishes assets to Redbubble. Redbubble has no template concept;
// instead each upload enables the product types toggled on in settings.
type Shop struct {
	cfg    *config.Config
	store  *settings.Store
	logger *slog.Logger
}

// New builds the redbubble shop adapter.
func New(cfg *config.Config, store *settings.Store, logger *slog.Logger) *Shop {
	return &Shop{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "shop-redbubble")}
}

func (s *Shop) Name() string { return "redbubble" }
func (s *Shop) Site() string { return "redbubble" }

// Authenticate confirms the portfolio is reachable. Redbubble needs no
// template, so the returned template is nil.
func (s *Shop) Authenticate(ctx context.Context, session browser.Session) (*shop.Template, error) {
	if err := session.Navigate(ctx, portfolioURL); err != nil {
		return nil, err
	}
	if err := session.WaitVisible(ctx, searchResults); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "shop-redbubble", "authenticate",
			"portfolio not reachable, session may be expired, re-run verifysite redbubble", err)
	}
	return nil, nil
}

// AlreadySubmitted searches the portfolio for the asset's title.
func (s *Shop) AlreadySubmitted(ctx context.Context, session browser.Session, a *asset.Asset) (bool, error) {
	searchURL := portfolioURL + "?search=" + strings.ReplaceAll(strings.TrimSpace(a.Meta.Title), " ", "+")
	if err := session.Navigate(ctx, searchURL); err != nil {
		return false, err
	}
	text, err := session.Text(ctx, searchResults)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(text) != "", nil
}

// Submit uploads the image, fills the work fields, applies the product
// toggles, and publishes.
func (s *Shop) Submit(ctx context.Context, session browser.Session, a *asset.Asset, _ *shop.Template) error {
	if err := session.Navigate(ctx, uploadURL); err != nil {
		return err
	}
	if err := session.Upload(ctx, fileInput, a.ImagePath); err != nil {
		return err
	}
	if err := session.SendKeys(ctx, titleInput, a.Meta.Title); err != nil {
		return err
	}
	if err := session.SendKeys(ctx, descriptionInput, a.Meta.Description); err != nil {
		return err
	}
	if err := session.SendKeys(ctx, tagsInput, a.Meta.TagString()); err != nil {
		return err
	}
	if err := s.applyProductToggles(ctx, session); err != nil {
		return err
	}
	if err := session.Click(ctx, rightsCheckbox); err != nil {
		return err
	}
	if err := session.Click(ctx, publishButton); err != nil {
		return err
	}
	if err := session.WaitVisible(ctx, publishedBanner); err != nil {
		return err
	}
	s.logger.Info("work published",
		logging.String(logging.FieldAssetID, a.ID),
		logging.String("title", a.Meta.Title))
	return nil
}

// applyProductToggles disables every product type switched off in settings.
// The upload form starts with all products enabled.
func (s *Shop) applyProductToggles(ctx context.Context, session browser.Session) error {
	for product, selector := range productToggles {
		enabled, err := s.store.ProductEnabled(product)
		if err != nil {
			return err
		}
		if enabled {
			continue
		}
		if _, err := session.Eval(ctx, fmt.Sprintf(
			`(() => { const box = document.querySelector(%q); if (box && box.checked) box.click(); })()`, selector)); err != nil {
			return err
		}
		s.logger.Debug("product disabled", logging.String("product", product))
	}
	return nil
}

var _ shop.Adapter = (*Shop)(nil)
