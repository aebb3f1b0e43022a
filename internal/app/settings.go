package app

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/judgy/internal/events"
	"github.com/ayusman/judgy/internal/logger"
	"github.com/ayusman/judgy/internal/reaction"
)

// Keys of the settings table.
const (
	KeyPickupThreshold  = "pickup_threshold"
	KeyPutdownThreshold = "putdown_threshold"
	KeyCooldown         = "cooldown_seconds"
	KeyPraise           = "praise_enabled"
	KeyPersonality      = "personality"
)

// Settings are the runtime-tunable parameters.
type Settings struct {
	PickupThreshold  int      `json:"pickup_threshold"`
	PutdownThreshold int      `json:"putdown_threshold"`
	CooldownSeconds  float64  `json:"cooldown_seconds"`
	Praise           bool     `json:"praise_enabled"`
	Personality      string   `json:"personality"`
	Personalities    []string `json:"personalities"`
}

// SettingsUpdate changes the non-nil fields only.
type SettingsUpdate struct {
	PickupThreshold  *int     `json:"pickup_threshold,omitempty"`
	PutdownThreshold *int     `json:"putdown_threshold,omitempty"`
	CooldownSeconds  *float64 `json:"cooldown_seconds,omitempty"`
	Praise           *bool    `json:"praise_enabled,omitempty"`
	Personality      *string  `json:"personality,omitempty"`
}

// Settings returns the current settings.
func (a *App) Settings() Settings {
	a.mu.RLock()
	th := a.thresholds
	a.mu.RUnlock()

	return Settings{
		PickupThreshold:  th.Pickup,
		PutdownThreshold: th.Putdown,
		CooldownSeconds:  th.Cooldown.Seconds(),
		Praise:           a.dispatcher.Praise(),
		Personality:      a.dispatcher.Personality(),
		Personalities:    reaction.Names(),
	}
}

// UpdateSettings validates u, applies it and persists the changed keys.
// Nothing is applied when validation fails.
func (a *App) UpdateSettings(u SettingsUpdate) (Settings, error) {
	if err := a.applySettings(u); err != nil {
		return a.Settings(), err
	}
	if err := a.persistSettings(u); err != nil {
		return a.Settings(), fmt.Errorf("save settings: %w", err)
	}
	return a.Settings(), nil
}

func (a *App) applySettings(u SettingsUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	th := a.thresholds
	if u.PickupThreshold != nil {
		th.Pickup = *u.PickupThreshold
	}
	if u.PutdownThreshold != nil {
		th.Putdown = *u.PutdownThreshold
	}
	if u.CooldownSeconds != nil {
		th.Cooldown = time.Duration(*u.CooldownSeconds * float64(time.Second))
	}
	if err := th.Validate(); err != nil {
		return err
	}
	if u.Personality != nil && !reaction.Valid(*u.Personality) {
		return fmt.Errorf("unknown personality %q", *u.Personality)
	}

	a.thresholds = th
	if u.Personality != nil {
		// Validated above.
		_ = a.dispatcher.SetPersonality(*u.Personality)
	}
	if u.Praise != nil {
		a.dispatcher.SetPraise(*u.Praise)
		a.session.SetPraise(*u.Praise)
	}
	return nil
}

func (a *App) persistSettings(u SettingsUpdate) error {
	if a.store == nil {
		return nil
	}
	repo := a.store.Settings()

	var errs []error
	set := func(key, value string) {
		if err := repo.Set(key, value); err != nil {
			errs = append(errs, err)
		}
	}
	if u.PickupThreshold != nil {
		set(KeyPickupThreshold, strconv.Itoa(*u.PickupThreshold))
	}
	if u.PutdownThreshold != nil {
		set(KeyPutdownThreshold, strconv.Itoa(*u.PutdownThreshold))
	}
	if u.CooldownSeconds != nil {
		set(KeyCooldown, strconv.FormatFloat(*u.CooldownSeconds, 'f', -1, 64))
	}
	if u.Praise != nil {
		set(KeyPraise, strconv.FormatBool(*u.Praise))
	}
	if u.Personality != nil {
		set(KeyPersonality, *u.Personality)
	}
	return errors.Join(errs...)
}

// loadSettings applies values saved by an earlier run over the file
// configuration.
func (a *App) loadSettings() error {
	if a.store == nil {
		return nil
	}
	saved, err := a.store.Settings().All()
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		return nil
	}

	var (
		u    SettingsUpdate
		errs []error
	)
	for key, value := range saved {
		switch key {
		case KeyPickupThreshold:
			n, err := strconv.Atoi(value)
			errs = append(errs, err)
			u.PickupThreshold = &n
		case KeyPutdownThreshold:
			n, err := strconv.Atoi(value)
			errs = append(errs, err)
			u.PutdownThreshold = &n
		case KeyCooldown:
			f, err := strconv.ParseFloat(value, 64)
			errs = append(errs, err)
			u.CooldownSeconds = &f
		case KeyPraise:
			b, err := strconv.ParseBool(value)
			errs = append(errs, err)
			u.Praise = &b
		case KeyPersonality:
			v := value
			u.Personality = &v
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if err := a.applySettings(u); err != nil {
		return err
	}

	logger.Info("app", "loaded %d stored settings", len(saved))
	return nil
}

// Thresholds returns the event thresholds described by s.
func (s Settings) Thresholds() events.Thresholds {
	return events.Thresholds{
		Pickup:   s.PickupThreshold,
		Putdown:  s.PutdownThreshold,
		Cooldown: time.Duration(s.CooldownSeconds * float64(time.Second)),
	}
}
