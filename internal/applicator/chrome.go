package applicator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/logger"
)

const (
	pageLoadTimeout = 30 * time.Second
	selectorWait    = 10 * time.Second
)

// ChromeBackend drives a local Chrome through chromedp.
// Session state is the browser's cookie jar encoded as JSON.
type ChromeBackend struct {
	headless bool
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromeBackend creates a backend; the browser starts on Open.
func NewChromeBackend(headless bool, log *zap.Logger) *ChromeBackend {
	return &ChromeBackend{headless: headless, logger: logger.OrNop(log)}
}

func (b *ChromeBackend) Open(ctx context.Context, site string, state []byte) error {
	if b.ctx != nil {
		return errors.New("chrome session already open")
	}

	b.ctx, b.cancel = createBrowserContext(b.headless, b.logger)

	// the first Run allocates the browser and ties its lifetime to b.ctx
	stop := context.AfterFunc(ctx, b.cancel)
	err := chromedp.Run(b.ctx)
	stop()
	if err != nil {
		b.shutdown()
		if ctx.Err() != nil {
			return fmt.Errorf("%w: start browser: %w", ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: start browser: %w", ErrNavigation, err)
	}

	cookies, err := decodeCookies(state)
	if err != nil {
		b.logger.Warn("ignoring unreadable chrome session", zap.String(logger.FieldSite, site), zap.Error(err))
		return nil
	}
	if len(cookies) > 0 {
		if err := b.run(ctx, pageLoadTimeout, network.SetCookies(cookies)); err != nil {
			b.logger.Warn("restoring chrome cookies failed", zap.String(logger.FieldSite, site), zap.Error(err))
		}
	}
	return nil
}

func (b *ChromeBackend) Navigate(ctx context.Context, url string) error {
	if err := b.run(ctx, pageLoadTimeout, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	return nil
}

func (b *ChromeBackend) FillField(ctx context.Context, locator, value string) error {
	if err := b.run(ctx, selectorWait, chromedp.WaitVisible(locator, chromedp.ByQuery)); err != nil {
		return classifyWait(ctx, err)
	}
	return classifyAction(ctx, b.run(ctx, selectorWait,
		chromedp.Clear(locator, chromedp.ByQuery),
		chromedp.SendKeys(locator, value, chromedp.ByQuery),
	))
}

func (b *ChromeBackend) UploadFile(ctx context.Context, locator, path string) error {
	if err := b.run(ctx, selectorWait, chromedp.WaitReady(locator, chromedp.ByQuery)); err != nil {
		return classifyWait(ctx, err)
	}
	return classifyAction(ctx, b.run(ctx, selectorWait, chromedp.SetUploadFiles(locator, []string{path}, chromedp.ByQuery)))
}

func (b *ChromeBackend) Close(ctx context.Context) ([]byte, error) {
	if b.ctx == nil {
		return nil, nil
	}
	defer b.shutdown()

	var cookies []*network.Cookie
	err := b.run(ctx, selectorWait, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read chrome cookies: %w", err)
	}
	return encodeCookies(cookies)
}

// run executes actions on the browser, bounded by both limit and the caller's ctx.
func (b *ChromeBackend) run(ctx context.Context, limit time.Duration, actions ...chromedp.Action) error {
	if b.ctx == nil {
		return errors.New("chrome session is not open")
	}

	runCtx, cancel := context.WithTimeout(b.ctx, limit)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (b *ChromeBackend) shutdown() {
	if b.cancel != nil {
		b.cancel()
	}
	b.ctx, b.cancel = nil, nil
}

// createBrowserContext creates a new browser context with appropriate options
func createBrowserContext(headless bool, log *zap.Logger) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel2 := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		msg := fmt.Sprintf(format, v...)
		// chromedp lags behind the protocol and reports unknown enum values
		if strings.Contains(msg, "could not unmarshal event") {
			return
		}
		log.Debug(msg)
	}))

	return ctx, func() {
		cancel2()
		cancel()
	}
}

type savedCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

func encodeCookies(cookies []*network.Cookie) ([]byte, error) {
	saved := make([]savedCookie, 0, len(cookies))
	for _, c := range cookies {
		saved = append(saved, savedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return json.Marshal(saved)
}

func decodeCookies(state []byte) ([]*network.CookieParam, error) {
	if len(state) == 0 {
		return nil, nil
	}

	var saved []savedCookie
	if err := json.Unmarshal(state, &saved); err != nil {
		return nil, err
	}

	params := make([]*network.CookieParam, 0, len(saved))
	for _, c := range saved {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		switch c.SameSite {
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params, nil
}
