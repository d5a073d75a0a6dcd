package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestConfigFrameSize(t *testing.T) {
	if got := (Config{}).frameSize(); got != DefaultFrameSize {
		t.Errorf("Expected default frame size %d, got %d", DefaultFrameSize, got)
	}
	if got := (Config{FrameSize: 2048}).frameSize(); got != 2048 {
		t.Errorf("Expected frame size 2048, got %d", got)
	}
}

func TestConfigDescribe(t *testing.T) {
	desc := Config{SampleRate: 48000, EchoCancellation: true}.Describe()

	for _, want := range []string{"device=default", "rate=48000", "echo_cancel=true", "auto_gain=false"} {
		if !strings.Contains(desc, want) {
			t.Errorf("Expected describe output to contain %q, got %q", want, desc)
		}
	}

	named := Config{Device: "USB Microphone"}.Describe()
	if !strings.Contains(named, "device=USB Microphone") {
		t.Errorf("Expected named device in describe output, got %q", named)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"permission refusal", errors.New("Device access denied by policy"), ErrPermissionDenied},
		{"permission keyword", errors.New("insufficient permission for device"), ErrPermissionDenied},
		{"missing host api", errors.New("Host error: no usable host API"), ErrUnsupported},
		{"no device", errors.New("no device available"), ErrUnsupported},
		{"other fault", errors.New("device unplugged"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Errorf("Expected %v class, got %v", tt.want, got)
				}
				return
			}
			if errors.Is(got, ErrUnsupported) || errors.Is(got, ErrPermissionDenied) {
				t.Errorf("Expected unclassified capture failure, got %v", got)
			}
		})
	}
}

func TestIsCapabilityError(t *testing.T) {
	if !isCapabilityError(classify(errors.New("access denied"))) {
		t.Error("Expected permission failure to count as capability error")
	}
	if !isCapabilityError(classify(errors.New("no device found"))) {
		t.Error("Expected unsupported failure to count as capability error")
	}
	if isCapabilityError(errors.New("read timeout")) {
		t.Error("Expected plain fault to not count as capability error")
	}
	if isCapabilityError(nil) {
		t.Error("Expected nil to not count as capability error")
	}
}

func TestSourcesRejectReuse(t *testing.T) {
	cb := NewCallbackSource(Config{}, nil)
	cb.Stop()
	if err := cb.Start(context.Background()); err == nil {
		t.Error("Expected callback source to reject start after stop")
	}

	poll := NewPollSource(Config{}, nil)
	poll.Stop()
	if err := poll.Start(context.Background()); err == nil {
		t.Error("Expected poll source to reject start after stop")
	}
}
