package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autocloudskill/domain/entities"
)

// maxFrameDepth bounds the deep search so a pathological frame tree cannot
// stall the fill step.
const maxFrameDepth = 5

// Resolver fills form controls through an ordered chain of strategies:
// accessible label, placeholder text, explicit CSS selectors, then a bounded
// search across nested frames. A strategy wins only when its element both
// exists and accepts the value; a located element that rejects the write
// falls through to the next strategy.
type Resolver struct {
	log *zap.Logger
}

// NewResolver - builds a resolver for form lookups
func NewResolver(log *zap.Logger) *Resolver {
	return &Resolver{log: log.Named("resolver")}
}

// fillStrategy is one way to find a field. locate returns nil when the
// strategy has no visible match.
type fillStrategy struct {
	name   string
	locate func() playwright.Locator
}

// strategies builds the ordered chain for a field spec.
func (r *Resolver) strategies(page playwright.Page, spec entities.FieldSpec) []fillStrategy {
	var chain []fillStrategy

	if spec.Label != "" {
		chain = append(chain, fillStrategy{"label", func() playwright.Locator {
			return firstVisible(page.GetByLabel(spec.Label))
		}})
	}
	if spec.Placeholder != "" {
		chain = append(chain, fillStrategy{"placeholder", func() playwright.Locator {
			return firstVisible(page.GetByPlaceholder(spec.Placeholder))
		}})
	}
	for _, selector := range spec.Selectors {
		selector := selector
		chain = append(chain, fillStrategy{"selector", func() playwright.Locator {
			return firstVisible(page.Locator(selector))
		}})
	}
	chain = append(chain, fillStrategy{"frame", func() playwright.Locator {
		return r.searchFrames(page.MainFrame(), spec, 0)
	}})

	return chain
}

// Locate returns the first strategy's visible match without writing anything.
func (r *Resolver) Locate(page playwright.Page, spec entities.FieldSpec) (playwright.Locator, error) {
	for _, st := range r.strategies(page, spec) {
		if loc := st.locate(); loc != nil {
			return loc, nil
		}
	}
	return nil, fmt.Errorf("field %q not found by label, placeholder, selectors or frame search", spec.Name)
}

// searchFrames walks child frames depth-first looking for the field's
// selectors. The main frame itself was already covered by the page-level
// strategies.
func (r *Resolver) searchFrames(frame playwright.Frame, spec entities.FieldSpec, depth int) playwright.Locator {
	if depth >= maxFrameDepth {
		return nil
	}
	for _, child := range frame.ChildFrames() {
		for _, selector := range spec.Selectors {
			if loc := firstVisible(child.Locator(selector)); loc != nil {
				r.log.Debug("field found inside frame",
					zap.String("field", spec.Name),
					zap.String("frame", child.URL()),
					zap.Int("depth", depth+1))
				return loc
			}
		}
		if loc := r.searchFrames(child, spec, depth+1); loc != nil {
			return loc
		}
	}
	return nil
}

// firstVisible narrows a locator to its first visible match, or nil.
func firstVisible(loc playwright.Locator) playwright.Locator {
	count, err := loc.Count()
	if err != nil || count == 0 {
		return nil
	}
	first := loc.First()
	visible, err := first.IsVisible()
	if err != nil || !visible {
		return nil
	}
	return first
}

// FillField writes the value into the field, advancing through the strategy
// chain until one element verifiably holds it.
func (r *Resolver) FillField(page playwright.Page, spec entities.FieldSpec, value string) error {
	return r.fillWithStrategies(spec.Name, r.strategies(page, spec), value, nil)
}

// fillWithStrategies tries each strategy in order: locate, write, read back.
// An element that rejects the value does not end the chain; every attempt is
// recorded when a recorder is supplied.
func (r *Resolver) fillWithStrategies(field string, chain []fillStrategy, value string, rec *entities.StepRecorder) error {
	located := 0
	for _, st := range chain {
		loc := st.locate()
		if loc == nil {
			continue
		}
		located++

		err := writeAndVerify(loc, value)
		if rec != nil {
			rec.RecordAttempt(entities.FillAttempt{Field: field, Strategy: st.name, OK: err == nil})
		}
		if err == nil {
			r.log.Debug("field filled",
				zap.String("field", field),
				zap.String("strategy", st.name))
			return nil
		}
		r.log.Debug("strategy located the field but could not write it",
			zap.String("field", field),
			zap.String("strategy", st.name),
			zap.Error(err))
	}

	if located == 0 {
		return fmt.Errorf("field %q not found by label, placeholder, selectors or frame search", field)
	}
	return fmt.Errorf("field %q: %d located element(s) rejected the value", field, located)
}

// writeAndVerify fills the element and reads the value back. When the fast
// fill does not survive the read-back it retries with keystroke-by-keystroke
// typing for inputs guarded by client-side handlers.
func writeAndVerify(loc playwright.Locator, value string) error {
	if err := loc.Fill(value); err == nil {
		if got, err := loc.InputValue(); err == nil && got == value {
			return nil
		}
	}

	if err := loc.Clear(); err != nil {
		return fmt.Errorf("failed to clear element: %w", err)
	}
	if err := loc.PressSequentially(value, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(30),
	}); err != nil {
		return fmt.Errorf("failed to type into element: %w", err)
	}

	got, err := loc.InputValue()
	if err != nil {
		return fmt.Errorf("failed to read element back: %w", err)
	}
	if got != value {
		return fmt.Errorf("element holds %q after fill, wanted %q", got, value)
	}
	return nil
}

// FillForm fills every field, failing fast on a critical field and tolerating
// up to MaxOptionalFillFailures broken optional ones. Per-strategy attempts
// land in the recorder for diagnostics.
func (r *Resolver) FillForm(page playwright.Page, fields []entities.FieldSpec, values map[string]string, rec *entities.StepRecorder) error {
	optionalFailures := 0

	for _, field := range fields {
		value, ok := values[field.Name]
		if !ok {
			continue
		}

		err := r.fillWithStrategies(field.Name, r.strategies(page, field), value, rec)
		if err == nil {
			continue
		}

		if field.Critical {
			return fmt.Errorf("critical field %q: %w", field.Name, err)
		}

		optionalFailures++
		r.log.Warn("optional field failed to fill",
			zap.String("field", field.Name),
			zap.Int("failures", optionalFailures),
			zap.Error(err))
		if optionalFailures > entities.MaxOptionalFillFailures {
			return fmt.Errorf("too many optional fields failed (%d): last field %q: %w",
				optionalFailures, field.Name, err)
		}
	}

	return nil
}
