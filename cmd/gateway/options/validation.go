package options

import (
	"fmt"
)

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}

	if o.TestMeter && o.TestSink {
		errs = append(errs, fmt.Errorf("--test-meter and --test-sink are mutually exclusive"))
	}
	if !o.TestSink && len(o.Device) == 0 {
		errs = append(errs, fmt.Errorf("--device is required"))
	}
	if !o.TestMeter && !o.TestSink && len(o.Values) == 0 {
		errs = append(errs, fmt.Errorf("no value parameters given, expected idx:CommandNr:mode[:idx2]"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("--timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("--max-retries must not be negative"))
	}
	return errs
}
