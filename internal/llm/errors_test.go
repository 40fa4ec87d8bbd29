package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestErrorFromHTTPStatus_Classification(t *testing.T) {
	cases := []struct {
		status    int
		message   string
		retryable bool
		target    any
	}{
		{400, "bad request", false, new(*InvalidRequestError)},
		{400, "request blocked by content filter", false, new(*ContentFilterError)},
		{422, "prompt exceeds context length", false, new(*ContextLengthError)},
		{400, "monthly quota exceeded, check billing", false, new(*QuotaExceededError)},
		{400, "model does not exist", false, new(*NotFoundError)},
		{400, "invalid key provided", false, new(*AuthenticationError)},
		{401, "unauthorized", false, new(*AuthenticationError)},
		{403, "forbidden", false, new(*AccessDeniedError)},
		{404, "no such model", false, new(*NotFoundError)},
		{408, "timeout", true, new(*RequestTimeoutError)},
		{413, "payload too large", false, new(*ContextLengthError)},
		{429, "rate limited", true, new(*RateLimitError)},
		{500, "internal", true, new(*ServerError)},
		{503, "overloaded", true, new(*ServerError)},
		{599, "weird", true, new(*UnknownHTTPError)},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_%s", tc.status, tc.message), func(t *testing.T) {
			err := ErrorFromHTTPStatus("prov", tc.status, tc.message, nil)
			if IsRetryable(err) != tc.retryable {
				t.Fatalf("retryable = %v, want %v for %v", IsRetryable(err), tc.retryable, err)
			}
			if !errors.As(err, tc.target) {
				t.Fatalf("wrong error type for status %d %q: %T", tc.status, tc.message, err)
			}
		})
	}
}

func TestErrorFromHTTPStatus_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("stage clue_build: %w", ErrorFromHTTPStatus("prov", 429, "slow down", nil))
	if !IsRetryable(err) {
		t.Fatal("retryability must survive error wrapping")
	}
	var le Error
	if !errors.As(err, &le) || le.StatusCode() != 429 {
		t.Fatalf("lost the typed error through wrapping: %v", err)
	}
}

func TestIsRetryable_NonLLMError(t *testing.T) {
	if IsRetryable(errors.New("plain")) {
		t.Fatal("plain errors are not retryable")
	}
	if IsRetryable(nil) {
		t.Fatal("nil is not retryable")
	}
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Message: "no api key set"}
	if err.Retryable() {
		t.Fatal("configuration errors are never retryable")
	}
	if err.Error() != "configuration error: no api key set" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestParseRetryAfter_Seconds(t *testing.T) {
	d := ParseRetryAfter("30", time.Now())
	if d == nil || *d != 30*time.Second {
		t.Fatalf("ParseRetryAfter(30) = %v", d)
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	v := now.Add(90 * time.Second).UTC().Format(http.TimeFormat)
	d := ParseRetryAfter(v, now)
	if d == nil || *d != 90*time.Second {
		t.Fatalf("ParseRetryAfter(%q) = %v", v, d)
	}

	past := now.Add(-time.Minute).UTC().Format(http.TimeFormat)
	d = ParseRetryAfter(past, now)
	if d == nil || *d != 0 {
		t.Fatalf("past dates clamp to zero, got %v", d)
	}
}

func TestParseRetryAfter_Garbage(t *testing.T) {
	for _, v := range []string{"", "soon", "-5"} {
		if d := ParseRetryAfter(v, time.Now()); d != nil {
			t.Fatalf("ParseRetryAfter(%q) = %v, want nil", v, d)
		}
	}
}
