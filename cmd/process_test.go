package cmd

import (
	"strings"
	"testing"
)

func TestValidateUploadKind(t *testing.T) {
	for _, kind := range []string{"audio", "video"} {
		if err := validateUploadKind(kind); err != nil {
			t.Fatalf("validateUploadKind(%q)=%v, want nil", kind, err)
		}
	}
	for _, kind := range []string{"", "media", "Audio", "screen"} {
		err := validateUploadKind(kind)
		if err == nil || !strings.Contains(err.Error(), "audio or video") {
			t.Fatalf("validateUploadKind(%q)=%v, want rejection", kind, err)
		}
	}
}

func TestUploadCmd_RejectsKindBeforeUpload(t *testing.T) {
	old := flagUploadKind
	t.Cleanup(func() { flagUploadKind = old })
	flagUploadKind = "media"

	err := uploadCmd.RunE(uploadCmd, []string{"does-not-exist.ogg"})
	if err == nil || !strings.Contains(err.Error(), "invalid upload kind") {
		t.Fatalf("err=%v, want invalid upload kind", err)
	}
}
