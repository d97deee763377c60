package engine

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the static control parameters. All values come from
// configuration; invalid combinations are a fatal startup error, never a
// runtime fault.
type Config struct {
	TargetTempTenths       int           // stop heating at/above this
	SafetyMaxTempTenths    int           // hard cutoff, overrides everything
	SafetyResumeTempTenths int           // must drop below this to leave SAFETY_HOLD
	PriceThresholdMinor    int           // heat only when price <= threshold
	MinDwell               time.Duration // minimum time between opposite transitions
	TemperatureStaleness   time.Duration // readings older than this are unknown
}

var (
	errTargetTemp      = errors.New("target_temp_tenths must be > 0")
	errSafetyMax       = errors.New("safety_max_temp_tenths must be above target_temp_tenths")
	errSafetyResume    = errors.New("safety_resume_temp_tenths must be below safety_max_temp_tenths")
	errPriceThreshold  = errors.New("price_threshold_minor must be >= 0")
	errDwellNegative   = errors.New("min_dwell must be >= 0")
	errStalenessWindow = errors.New("temperature_staleness must be > 0")
)

// Validate rejects out-of-range or self-contradictory parameters.
func (c Config) Validate() error {
	if c.TargetTempTenths <= 0 {
		return errTargetTemp
	}
	if c.SafetyMaxTempTenths <= c.TargetTempTenths {
		return fmt.Errorf("%w (max=%d target=%d)", errSafetyMax, c.SafetyMaxTempTenths, c.TargetTempTenths)
	}
	if c.SafetyResumeTempTenths >= c.SafetyMaxTempTenths {
		return fmt.Errorf("%w (resume=%d max=%d)", errSafetyResume, c.SafetyResumeTempTenths, c.SafetyMaxTempTenths)
	}
	if c.PriceThresholdMinor < 0 {
		return errPriceThreshold
	}
	if c.MinDwell < 0 {
		return errDwellNegative
	}
	if c.TemperatureStaleness <= 0 {
		return errStalenessWindow
	}
	return nil
}
