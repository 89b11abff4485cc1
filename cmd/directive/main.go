// The directive command generates one campaign directive from a segment
// record supplied as JSON on stdin:
//
//	{"segment": {...}, "is_email_campaign": false}
//
// The directive is written to stdout; validation failures go to stderr as
// JSON and exit nonzero.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/brightloop/campaign-insights/internal/directive"
)

type request struct {
	Segment         directive.SegmentInput `json:"segment"`
	IsEmailCampaign bool                   `json:"is_email_campaign"`
}

func main() {
	profile := flag.String("profile", "standard", "threshold profile (standard or legacy)")
	flag.Parse()

	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fail(map[string]string{"error": fmt.Sprintf("invalid JSON input: %v", err)})
	}

	segment, verr := req.Segment.Validate()
	if verr != nil {
		fail(map[string]any{"error": verr.Reason, "fields": verr.Fields})
	}

	gen, err := directive.NewGenerator(*profile)
	if err != nil {
		fail(map[string]string{"error": err.Error()})
	}

	d, err := gen.Generate(segment, req.IsEmailCampaign)
	if err != nil {
		fail(map[string]string{"error": err.Error()})
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(d); err != nil {
		fail(map[string]string{"error": err.Error()})
	}
}

func fail(v any) {
	_ = json.NewEncoder(os.Stderr).Encode(v)
	os.Exit(1)
}
