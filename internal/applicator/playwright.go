package applicator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/logger"
)

// PlaywrightBackend drives Chromium through playwright.
// Session state is the context's storage state (cookies and local storage) as JSON.
type PlaywrightBackend struct {
	headless bool
	logger   *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
}

// NewPlaywrightBackend creates a backend; playwright starts on Open.
func NewPlaywrightBackend(headless bool, log *zap.Logger) *PlaywrightBackend {
	return &PlaywrightBackend{headless: headless, logger: logger.OrNop(log)}
}

func (b *PlaywrightBackend) Open(ctx context.Context, site string, state []byte) error {
	if b.page != nil {
		return errors.New("playwright session already open")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("%w: start playwright: %w", ErrNavigation, err)
	}
	b.pw = pw

	b.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.headless),
	})
	if err != nil {
		b.shutdown()
		return fmt.Errorf("%w: launch chromium: %w", ErrNavigation, err)
	}

	opts := playwright.BrowserNewContextOptions{}
	if len(state) > 0 {
		path, cleanup, err := writeStorageState(state)
		if err != nil {
			b.logger.Warn("ignoring playwright session", zap.String(logger.FieldSite, site), zap.Error(err))
		} else {
			defer cleanup()
			opts.StorageStatePath = playwright.String(path)
		}
	}

	b.bctx, err = b.browser.NewContext(opts)
	if err != nil {
		b.shutdown()
		return fmt.Errorf("%w: new browser context: %w", ErrNavigation, err)
	}

	b.page, err = b.bctx.NewPage()
	if err != nil {
		b.shutdown()
		return fmt.Errorf("%w: new page: %w", ErrNavigation, err)
	}
	return nil
}

func (b *PlaywrightBackend) Navigate(ctx context.Context, url string) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(timeoutMillis(ctx, pageLoadTimeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	return nil
}

func (b *PlaywrightBackend) FillField(ctx context.Context, locator, value string) error {
	if err := b.waitFor(ctx, locator); err != nil {
		return err
	}
	err := b.page.Locator(locator).Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, selectorWait)),
	})
	return b.classify(ctx, err)
}

func (b *PlaywrightBackend) UploadFile(ctx context.Context, locator, path string) error {
	if err := b.waitFor(ctx, locator); err != nil {
		return err
	}
	err := b.page.Locator(locator).SetInputFiles([]string{path}, playwright.LocatorSetInputFilesOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, selectorWait)),
	})
	return b.classify(ctx, err)
}

func (b *PlaywrightBackend) Close(ctx context.Context) ([]byte, error) {
	if b.bctx == nil {
		b.shutdown()
		return nil, nil
	}
	defer b.shutdown()

	st, err := b.bctx.StorageState()
	if err != nil {
		return nil, fmt.Errorf("read storage state: %w", err)
	}
	return json.Marshal(st)
}

func (b *PlaywrightBackend) ready(ctx context.Context) error {
	if b.page == nil {
		return errors.New("playwright session is not open")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return nil
}

func (b *PlaywrightBackend) waitFor(ctx context.Context, locator string) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	err := b.page.Locator(locator).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(timeoutMillis(ctx, selectorWait)),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s: %w", ErrSelectorNotFound, locator, err)
	}
	return b.classify(ctx, err)
}

func (b *PlaywrightBackend) classify(ctx context.Context, err error) error {
	if err != nil && ctx.Err() == nil && errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return classifyAction(ctx, err)
}

func (b *PlaywrightBackend) shutdown() {
	if b.bctx != nil {
		if err := b.bctx.Close(); err != nil {
			b.logger.Debug("closing browser context", zap.Error(err))
		}
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			b.logger.Debug("closing browser", zap.Error(err))
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			b.logger.Debug("stopping playwright", zap.Error(err))
		}
	}
	b.pw, b.browser, b.bctx, b.page = nil, nil, nil, nil
}

// timeoutMillis bounds limit by the time left on ctx, in the milliseconds playwright expects.
func timeoutMillis(ctx context.Context, limit time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < limit {
			limit = max(left, time.Millisecond)
		}
	}
	return float64(limit.Milliseconds())
}

func writeStorageState(state []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "applyflow-session-*.json")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(state); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
