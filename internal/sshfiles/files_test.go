package sshfiles

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// fakeRunner answers commands from a table.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, cmd string) (string, error) {
	f.calls = append(f.calls, cmd)
	if err, ok := f.errs[cmd]; ok {
		return f.outputs[cmd], err
	}
	return f.outputs[cmd], nil
}

func TestParseListing_Directory(t *testing.T) {
	entries := ParseListing("drwxr-xr-x 2 alice staff 4096 2024-01-15 10:30 projects\n")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := Entry{
		Name:        "projects",
		Type:        TypeDirectory,
		Permissions: "drwxr-xr-x",
		Owner:       "alice",
		Group:       "staff",
		Size:        4096,
		Modified:    "2024-01-15 10:30",
	}
	if entries[0] != want {
		t.Errorf("entry = %+v\nwant    %+v", entries[0], want)
	}
}

func TestParseListing_Symlink(t *testing.T) {
	entries := ParseListing("lrwxrwxrwx 1 alice staff 16 2024-01-15 10:30 config -> ../shared/config")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Name != "config" || entries[0].Type != TypeLink {
		t.Errorf("entry = %+v, want name=config type=link", entries[0])
	}
}

func TestParseListing_FullOutput(t *testing.T) {
	output := strings.Join([]string{
		"total 24",
		"drwxr-xr-x  5 alice staff 4096 2024-01-15 10:30 .",
		"drwxr-xr-x 12 root  root  4096 2024-01-10 08:00 ..",
		"-rw-r--r--  1 alice staff  220 2024-01-15 10:31 .bashrc",
		"-rw-r--r--  1 alice staff 1024 2024-01-12 09:00 my notes.txt",
		"drwxr-xr-x  2 alice staff 4096 2024-01-11 12:00 Documents",
		"",
		"garbage line",
	}, "\n")

	entries := ParseListing(output)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"..", "Documents", ".bashrc", "my notes.txt"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %q, want %q", names, want)
	}

	for _, e := range entries {
		if e.Name == "my notes.txt" && e.Size != 1024 {
			t.Errorf("size of %q = %d, want 1024", e.Name, e.Size)
		}
	}
}

func TestParseListing_Names(t *testing.T) {
	tests := []struct {
		line     string
		name     string
		typ      string
		modified string
	}{
		{"lrwxrwxrwx 1 alice staff 16 2024-01-15 10:30 config -> ../shared/config", "config", TypeLink, "2024-01-15 10:30"},
		{"-rw-r--r-- 1 alice staff 10 2024-01-15 10:30 my notes.txt", "my notes.txt", TypeFile, "2024-01-15 10:30"},
		{"lrwxrwxrwx 1 alice staff 16 2024-01-15 10:30 old config -> ../shared/config", "old config", TypeLink, "2024-01-15 10:30"},
		{"lrwxrwxrwx 1 alice staff 16 Jan 15 10:30 config -> ../shared/config", "config", TypeLink, "Jan 15"},
		{"-rw-r--r-- 1 alice staff 10 Jan 15 2023 my notes.txt", "my notes.txt", TypeFile, "Jan 15"},
	}
	for _, tt := range tests {
		entries := ParseListing(tt.line)
		if len(entries) != 1 {
			t.Errorf("ParseListing(%q) returned %d entries", tt.line, len(entries))
			continue
		}
		e := entries[0]
		if e.Name != tt.name || e.Type != tt.typ || e.Modified != tt.modified {
			t.Errorf("ParseListing(%q) = name %q type %q modified %q; want %q %q %q",
				tt.line, e.Name, e.Type, e.Modified, tt.name, tt.typ, tt.modified)
		}
	}
}

func TestIsISODate(t *testing.T) {
	tests := map[string]bool{
		"2024-01-15": true,
		"Jan":        false,
		"2024-1-15":  false,
		"2024/01/15": false,
		"20x4-01-15": false,
	}
	for in, want := range tests {
		if got := isISODate(in); got != want {
			t.Errorf("isISODate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseListing_DefaultTimeFormat(t *testing.T) {
	entries := ParseListing("-rw-r--r-- 1 bob users 512 Jan 15 10:30 report.pdf\r\n")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	// Fields 5-6 form the label; the time field is skipped in this format.
	if entries[0].Modified != "Jan 15" || entries[0].Name != "report.pdf" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestParseListing_EightFields(t *testing.T) {
	entries := ParseListing("-rw-r--r-- 1 bob users 512 Jan 15 report.pdf")
	if len(entries) != 1 || entries[0].Name != "report.pdf" || entries[0].Modified != "Jan 15" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestParseListing_BadSizeAndShortLines(t *testing.T) {
	output := "crw-rw-rw- 1 root tty 5, 0 2024-01-15 10:30 tty\n" +
		"-rw-r--r-- 1 bob users\n"
	entries := ParseListing(output)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d: %+v", len(entries), entries)
	}
	// "5," does not parse as a size.
	if entries[0].Size != 0 {
		t.Errorf("size = %d, want 0", entries[0].Size)
	}
	if entries[0].Type != TypeFile {
		t.Errorf("type = %q, want file", entries[0].Type)
	}
}

func TestParseListing_Empty(t *testing.T) {
	entries := ParseListing("")
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{Name: "..", Type: TypeDirectory},
		{Name: "zeta.txt", Type: TypeFile},
		{Name: "Apple", Type: TypeDirectory},
		{Name: "beta", Type: TypeDirectory},
	}
	SortEntries(entries)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"..", "Apple", "beta", "zeta.txt"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("order = %q, want %q", names, want)
	}
}

func TestSortEntries_ParentFirstEvenAsFile(t *testing.T) {
	entries := []Entry{
		{Name: "alpha", Type: TypeDirectory},
		{Name: "..", Type: TypeLink},
	}
	SortEntries(entries)
	if entries[0].Name != ".." {
		t.Errorf("expected .. first, got %q", entries[0].Name)
	}
}

func TestQuotePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{".", "'.'"},
		{"/var/log", "'/var/log'"},
		{"~", "~"},
		{"~/", "~/"},
		{"~/my dir", "~/'my dir'"},
		{"it's", `'it'\''s'`},
		{"; rm -rf /", "'; rm -rf /'"},
	}
	for _, tt := range tests {
		if got := QuotePath(tt.input); got != tt.want {
			t.Errorf("QuotePath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestListingCommand(t *testing.T) {
	got := ListingCommand("/tmp")
	want := "ls -la --time-style=long-iso '/tmp' 2>/dev/null || ls -la '/tmp'"
	if got != want {
		t.Errorf("ListingCommand = %q, want %q", got, want)
	}
	if got := ResolveCommand("~"); got != "cd ~ && pwd" {
		t.Errorf("ResolveCommand = %q", got)
	}
}

const sampleListing = "total 8\n" +
	"drwxr-xr-x 3 root root 4096 2024-01-15 10:30 .\n" +
	"drwxr-xr-x 3 root root 4096 2024-01-15 10:30 ..\n" +
	"drwxr-xr-x 2 root root 4096 2024-01-15 10:30 etc\n"

func TestListDirectory_Root(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		ListingCommand("/"): sampleListing,
		ResolveCommand("/"): "/\n",
	}}

	resolved, entries, err := ListDirectory(context.Background(), r, "/")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if resolved != "/" {
		t.Errorf("resolved = %q", resolved)
	}
	for _, e := range entries {
		if e.Name == ".." {
			t.Error("root listing must not include ..")
		}
	}
	if len(entries) != 1 || entries[0].Name != "etc" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestListDirectory_NonRootKeepsParent(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		ListingCommand("."): sampleListing,
		ResolveCommand("."): "/home/alice\n",
	}}

	resolved, entries, err := ListDirectory(context.Background(), r, "")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if resolved != "/home/alice" {
		t.Errorf("resolved = %q", resolved)
	}
	if len(entries) == 0 || entries[0].Name != ".." {
		t.Errorf("expected .. first for non-root path, got %+v", entries)
	}
	if len(r.calls) != 2 || r.calls[0] != ListingCommand(".") {
		t.Errorf("calls = %q", r.calls)
	}
}

func TestListDirectory_CommandFailure(t *testing.T) {
	failure := errors.New("command exited with status 2")
	r := &fakeRunner{
		outputs: map[string]string{ListingCommand("/nope"): "ls: cannot access '/nope': No such file or directory\n"},
		errs:    map[string]error{ListingCommand("/nope"): failure},
	}

	_, _, err := ListDirectory(context.Background(), r, "/nope")
	if !errors.Is(err, failure) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such file or directory") {
		t.Errorf("error should carry remote message: %v", err)
	}
}

func TestPwd(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"pwd": "/home/alice\n"}}
	got, err := Pwd(context.Background(), r)
	if err != nil || got != "/home/alice" {
		t.Errorf("Pwd = %q, %v", got, err)
	}

	r = &fakeRunner{outputs: map[string]string{"pwd": "  \n"}}
	if _, err := Pwd(context.Background(), r); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("expected ErrEmptyOutput, got %v", err)
	}
}
