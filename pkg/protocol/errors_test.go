package protocol

import (
	"errors"
	"testing"
)

func TestMayHaveSucceeded(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"timeout", &TimeoutError{}, true},
		{"disconnect", &DisconnectError{}, true},
		{"wrapped timeout", errors.Join(errors.New("outer"), &TimeoutError{}), true},
		{"protocol error", &ProtocolError{Msg: "bad frame"}, false},
		{"authentication error", &AuthenticationError{Msg: "bad hmac"}, false},
		{"vehicle reported error", &VehicleReportedError{Reason: "locked"}, false},
		{"config error", &ConfigError{Msg: "no vin"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := MayHaveSucceeded(c.err); got != c.want {
				t.Fatalf("MayHaveSucceeded(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("gatt write failed")
	err := &TransportError{Msg: "send", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("TransportError must unwrap to its wrapped error")
	}
	if got := err.Error(); got == "" {
		t.Fatal("Error() must not be empty")
	}
}

func TestDomainStringMapping(t *testing.T) {
	cases := []struct {
		domain Domain
		str    string
	}{
		{DomainNone, "none"},
		{DomainVCSEC, "vehicle_security"},
		{DomainInfotainment, "infotainment"},
	}
	for _, c := range cases {
		if got := c.domain.String(); got != c.str {
			t.Fatalf("Domain(%d).String() = %q, want %q", c.domain, got, c.str)
		}
	}
}
