// Command verify_snapshot checks a backup file offline: it recomputes the
// SHA-256 checksum and runs the same structural checks the server applies
// before a restore. Useful when moving backup files between machines.
//
// Usage:
//
//	go run ./scripts/verify_snapshot -file backups/backup-manual-20260301-090000-ab12cd34.json [-checksum <hex>]
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"

	"github.com/hw-lee/chulseok-api/internal/models"
)

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func main() {
	file := flag.String("file", "", "path to the snapshot JSON file")
	checksum := flag.String("checksum", "", "expected SHA-256 checksum (hex), optional")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
		os.Exit(1)
	}

	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	fmt.Printf("sha256: %s\n", actual)
	if *checksum != "" && *checksum != actual {
		fmt.Fprintf(os.Stderr, "checksum mismatch: expected %s\n", *checksum)
		os.Exit(1)
	}

	var payload models.SnapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		fmt.Fprintf(os.Stderr, "decode payload: %v\n", err)
		os.Exit(1)
	}

	issues := inspect(&payload)
	fmt.Printf("version: %s\nexportedAt: %d\nstudents: %d\nattendanceEntries: %d\nsettings: %d\n",
		payload.Version, payload.ExportedAt,
		len(payload.Students), len(payload.AttendanceEntries), len(payload.Settings))

	if len(issues) == 0 {
		fmt.Println("ok: snapshot is structurally valid")
		return
	}
	fmt.Printf("found %d issue(s):\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("  - %s\n", issue)
	}
	os.Exit(1)
}

func inspect(payload *models.SnapshotPayload) []string {
	var issues []string
	add := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if payload.Version == "" {
		add("missing snapshot version")
	}
	if payload.ExportedAt <= 0 {
		add("missing export timestamp")
	}

	studentIDs := make(map[string]bool, len(payload.Students))
	for i, student := range payload.Students {
		if student.ID == "" {
			add("student at index %d has no id", i)
			continue
		}
		if studentIDs[student.ID] {
			add("duplicate student id %s", student.ID)
		}
		studentIDs[student.ID] = true
		if student.Name == "" {
			add("student %s has no name", student.ID)
		}
	}

	entryIDs := make(map[string]bool, len(payload.AttendanceEntries))
	for i, entry := range payload.AttendanceEntries {
		if entry.ID == "" {
			add("attendance entry at index %d has no id", i)
			continue
		}
		if entryIDs[entry.ID] {
			add("duplicate attendance entry id %s", entry.ID)
		}
		entryIDs[entry.ID] = true
		if !entry.Status.Valid() {
			add("attendance entry %s has unsupported status %q", entry.ID, entry.Status)
		}
		if !dateFormat.MatchString(entry.Date) {
			add("attendance entry %s has malformed date %q", entry.ID, entry.Date)
		}
		if entry.StudentID == "" {
			add("attendance entry %s has no student id", entry.ID)
		} else if !studentIDs[entry.StudentID] {
			add("attendance entry %s references unknown student %s", entry.ID, entry.StudentID)
		}
	}

	return issues
}
