package main

import (
	"bytes"
	"context"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func writeJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(imaging.New(16, 8, color.NRGBA{B: 255, A: 255}), path); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUsageAndUnknownCommand(t *testing.T) {
	if code, out, _ := runCommand(t); code != exitUsage || !strings.Contains(out, "Usage: exifedit") {
		t.Errorf("no args: code=%d out=%q", code, out)
	}
	if code, _, _ := runCommand(t, "help"); code != 0 {
		t.Errorf("help exit code = %d", code)
	}

	code, _, errOut := runCommand(t, "bogus;rm")
	if code != exitUsage || !strings.Contains(errOut, "bogus_rm") {
		t.Errorf("unknown command: code=%d stderr=%q", code, errOut)
	}
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	src := writeJPEG(t, dir, "in.jpg")
	dst := filepath.Join(dir, "out.jpg")

	code, out, errOut := runCommand(t, "write",
		"-date", "2020:01:02 03:04:05",
		"-width", "16", "-height", "8",
		"-description", "blue field",
		"-o", dst, src)
	if code != 0 {
		t.Fatalf("write failed: %s", errOut)
	}
	if !strings.Contains(out, "Wrote "+dst) {
		t.Errorf("write output = %q", out)
	}

	code, out, errOut = runCommand(t, "read", dst)
	if code != 0 {
		t.Fatalf("read failed: %s", errOut)
	}
	for _, want := range []string{"2020:01:02 03:04:05", "16x8", "blue field"} {
		if !strings.Contains(out, want) {
			t.Errorf("read output %q missing %q", out, want)
		}
	}

	code, out, _ = runCommand(t, "read", src)
	if code != 0 || !strings.Contains(out, "Description: -") {
		t.Errorf("source changed: %q", out)
	}
}

func TestWriteRejectsBadValues(t *testing.T) {
	src := writeJPEG(t, t.TempDir(), "in.jpg")

	tests := []struct {
		args []string
		want int
	}{
		{[]string{"write", "-date", "last tuesday", src}, exitFailure},
		{[]string{"write", "-width", "0", src}, exitFailure},
		{[]string{"read", src + ".missing"}, exitFailure},
		{[]string{"write", "-width", "wide", src}, exitUsage},
		{[]string{"write", "-bogus", src}, exitUsage},
		{[]string{"write"}, exitUsage},
		{[]string{"read"}, exitUsage},
		{[]string{"read", src, src}, exitUsage},
		{[]string{"describe"}, exitUsage},
	}
	for _, tt := range tests {
		if code, _, _ := runCommand(t, tt.args...); code != tt.want {
			t.Errorf("%v: exit code %d, want %d", tt.args, code, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DESCRIPTIONS_FILE", filepath.Join(dir, "d.db"))
	photo := filepath.Join(dir, "a.jpg")

	code, out, _ := runCommand(t, "describe", photo)
	if code != 0 || !strings.Contains(out, "No description") {
		t.Errorf("empty index: code=%d out=%q", code, out)
	}

	if code, _, errOut := runCommand(t, "describe", photo, "sunset"); code != 0 {
		t.Fatalf("set description: %s", errOut)
	}

	code, out, _ = runCommand(t, "describe", photo)
	if code != 0 || strings.TrimSpace(out) != "sunset" {
		t.Errorf("after save: code=%d out=%q", code, out)
	}
}

func TestSanitizeCommand(t *testing.T) {
	tests := map[string]string{
		"read":          "read",
		"re ad":         "re_ad",
		"x\n\x1b[31m": "x___31m",
		"":              "",
	}
	for in, want := range tests {
		if got := sanitizeCommand(in); got != want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", in, got, want)
		}
	}
}
