package engine

import (
	"context"
	"errors"

	"github.com/genricoloni/mediagrab/internal/domain"
)

var messages = []struct {
	err  error
	text string
}{
	{domain.ErrRegionNotFound, "Player region not found on page"},
	{domain.ErrScriptNotFound, "No player script found on page"},
	{domain.ErrDescriptorNotFound, "Player data not found in script"},
	{domain.ErrMalformedDescriptor, "Player data is malformed"},
	{domain.ErrNoMediaDefinitions, "Page lists no media"},
	{domain.ErrNotRemote, "Media is not a remote source"},
	{domain.ErrNoMediaURL, "Media URL is missing"},
	{domain.ErrEmptyResult, "No quality options found"},
	{domain.ErrDecode, "Quality list could not be decoded"},
	{domain.ErrFetch, "Request failed"},
	{domain.ErrDownload, "Download failed"},
	{context.DeadlineExceeded, "Timed out"},
	{context.Canceled, "Canceled"},
}

// Message renders a stage error as a status line for the presentation layer
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if err == m.err {
			return m.text
		}
		if errors.Is(err, m.err) {
			return m.text + ": " + err.Error()
		}
	}
	return err.Error()
}
