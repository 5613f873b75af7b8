package gpt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"podflow/internal/asset"
	"podflow/internal/browser"
	"podflow/internal/config"
	"podflow/internal/logging"
	"podflow/internal/profiles"
	"podflow/internal/services"
	"podflow/internal/stage"
)

const (
	chatURL        = "https://chatgpt.com/"
	promptSelector = "#prompt-textarea"
	sendButton     = "[data-testid='send-button']"
	usageError     = "div.text-sm.text-token-text-error span"
	lastReply      = "div[data-message-author-role='assistant']:last-of-type"
	generatedImage = "div[class*='dalle-image'] img"

	imagePrompt = "Generate a print-on-demand sticker design. " +
		"Show the entire subject within the frame, fully in view, centered, no text. " +
		"Funny rubber hose style or a modern pop-art illustration. " +
		"Isolate the graphic on a single background color."

	metadataPrompt = "Based on the image, answer with a single JSON object and nothing else: " +
		`{"title": <max 40 characters>, "description": <200 to 240 characters>, ` +
		`"tags": <20 to 25 comma-separated single words as an array>}`
)

// The cap message appears in the account language, so both English and
// German phrasings are matched.
var usagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)usage (cap|limit)`),
	regexp.MustCompile(`(?i)exceeded the usage`),
	regexp.MustCompile(`(?i)nutzungslimit`),
}

// Stage produces a fresh asset through a ChatGPT session: one image plus the
// title, description, and tags metadata.
type Stage struct {
	cfg      *config.Config
	sessions *profiles.Store
	logger   *slog.Logger
}

// New builds the gpt stage.
func New(cfg *config.Config, sessions *profiles.Store, logger *slog.Logger) *Stage {
	return &Stage{cfg: cfg, sessions: sessions, logger: logging.NewComponentLogger(logger, "stage-gpt")}
}

func (s *Stage) Name() string { return "gpt" }
func (s *Stage) Capability() stage.Capability { return stage.CapabilityProduce }
func (s *Stage) Site() string { return "chatgpt" }

// HealthCheck verifies a chatgpt session exists before the batch starts.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if _, err := s.sessions.Load(s.Site()); err != nil {
		return stage.Unhealthy(s.Name(), "no chatgpt session, run verifysite chatgpt")
	}
	return stage.Healthy(s.Name())
}

// Produce drives one full generation round and materializes the asset under
// parentDir.
func (s *Stage) Produce(ctx context.Context, session browser.Session, parentDir string) (*asset.Asset, error) {
	if err := session.Navigate(ctx, chatURL); err != nil {
		return nil, err
	}
	if err := session.WaitVisible(ctx, promptSelector); err != nil {
		return nil, s.checkUsageCap(ctx, session, err)
	}

	if err := s.send(ctx, session, imagePrompt); err != nil {
		return nil, err
	}
	if err := session.WaitVisible(ctx, generatedImage); err != nil {
		return nil, s.checkUsageCap(ctx, session, err)
	}

	if err := s.send(ctx, session, metadataPrompt); err != nil {
		return nil, err
	}
	if err := session.WaitVisible(ctx, lastReply); err != nil {
		return nil, s.checkUsageCap(ctx, session, err)
	}
	replyText, err := session.Text(ctx, lastReply)
	if err != nil {
		return nil, err
	}
	meta, err := parseMetadata(replyText)
	if err != nil {
		return nil, err
	}

	payload, err := fetchImage(ctx, session)
	if err != nil {
		return nil, err
	}
	data, err := stage.DecodeImagePayload(payload)
	if err != nil {
		return nil, err
	}

	created, err := s.materialize(parentDir, meta, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("asset produced",
		logging.String(logging.FieldAssetID, created.ID),
		logging.String("title", meta.Title))
	return created, nil
}

// materialize writes the asset directory with its sidecars and image. A
// directory without an image has no artifact the router could act on, so a
// failed image write removes the partial directory again.
func (s *Stage) materialize(parentDir string, meta asset.Metadata, data []byte) (*asset.Asset, error) {
	created, err := asset.Create(parentDir, meta.Title, meta)
	if err != nil {
		return nil, err
	}
	imagePath := filepath.Join(created.Dir, "design.png")
	if err := stage.ReplaceImage(imagePath, data); err != nil {
		if rmErr := os.RemoveAll(created.Dir); rmErr != nil {
			s.logger.Error("failed to remove partial asset directory",
				logging.String(logging.FieldAssetID, created.ID),
				logging.Error(rmErr))
		}
		return nil, err
	}
	created.SetArtifact(imagePath)
	return created, nil
}

func (s *Stage) send(ctx context.Context, session browser.Session, prompt string) error {
	if err := session.SendKeys(ctx, promptSelector, prompt); err != nil {
		return err
	}
	return session.Click(ctx, sendButton)
}

// checkUsageCap upgrades a generic wait failure to a rate-limit error when
// the page shows the usage cap banner. The cap lifts on its own, so the
// failure stays transient either way.
func (s *Stage) checkUsageCap(ctx context.Context, session browser.Session, cause error) error {
	text, err := session.Text(ctx, usageError)
	if err != nil || strings.TrimSpace(text) == "" {
		return cause
	}
	for _, pattern := range usagePatterns {
		if pattern.MatchString(text) {
			return services.Wrap(services.ErrRateLimited, "stage-gpt", "generate", text, cause)
		}
	}
	return services.Wrap(services.ErrTransient, "stage-gpt", "generate", text, cause)
}

// fetchImage pulls the newest generated image out of the page as base64.
func fetchImage(ctx context.Context, session browser.Session) (string, error) {
	const expression = `(async () => {
  const imgs = document.querySelectorAll("div[class*='dalle-image'] img");
  const img = imgs[imgs.length - 1];
  const resp = await fetch(img.src);
  const buf = await resp.arrayBuffer();
  let binary = "";
  new Uint8Array(buf).forEach((b) => { binary += String.fromCharCode(b); });
  return btoa(binary);
})()`
	value, err := session.Eval(ctx, expression)
	if err != nil {
		return "", err
	}
	var payload string
	if err := json.Unmarshal(value, &payload); err != nil {
		return "", fmt.Errorf("decode image payload: %w", err)
	}
	return payload, nil
}

type metadataReply struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// parseMetadata extracts the JSON object from the model reply, tolerating
// surrounding prose. A malformed reply is transient: the next attempt gets a
// fresh answer.
func parseMetadata(text string) (asset.Metadata, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return asset.Metadata{}, services.Wrap(services.ErrTransient, "stage-gpt", "metadata", "reply contains no JSON object", nil)
	}
	var reply metadataReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return asset.Metadata{}, services.Wrap(services.ErrTransient, "stage-gpt", "metadata", "reply JSON is malformed", err)
	}
	title := asset.CleanString(strings.TrimSpace(reply.Title))
	if title == "" {
		return asset.Metadata{}, services.Wrap(services.ErrTransient, "stage-gpt", "metadata", "reply has no title", nil)
	}
	tags := make([]string, 0, len(reply.Tags))
	for _, tag := range reply.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return asset.Metadata{
		Title:       title,
		Description: strings.TrimSpace(reply.Description),
		Tags:        tags,
	}, nil
}

var _ stage.Producer = (*Stage)(nil)
