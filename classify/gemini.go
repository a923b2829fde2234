// Package classify assigns a numeric project-type id to each scraped
// record using the Gemini API. The model picks the best match from a
// fixed project-type table; 0 means "could not classify" and is never
// an error.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-2.0-flash"

// callDelay spaces out model calls to stay within the free-tier quota.
const callDelay = 4 * time.Second

// projectTypesCSV is the project-type reference table embedded into
// every prompt. Ids match the downstream publication database.
const projectTypesCSV = `id,name,sort_order,category,rank,analytics_include
68,"accessory buildings",20,,1,1
89,"agricultural building",110,,1,1
33,"civil work",53,Civil,1,0
20,"commercial add/alter",70,Commercial,5,1
18,"commercial new",60,Commercial,5,1
34,demolition/deconstruction,140,,1,1
84,foundations,160,,1,1
32,"industrial add/alter",100,Industrial,3,1
30,"industrial new",90,Industrial,3,1
23,"institutional add/alter",130,Institution,6,1
21,"institutional new",120,Institution,6,1
69,"tenant improvements",80,Commercial,5,1
71,"mixed-use dev",50,Multi-family,7,1
26,"multi-family add/alter",40,Multi-family,7,1
24,"multi-family new",30,Multi-family,7,1
64,"residential add/alter",10,,1,1
15,"residential new",1,,1,1
91,"roads & bridges",55,Civil,1,0
35,"sign permit",180,,1,0
67,"site mobile/pre-fab",170,,1,1
80,subdivision,147,Civil,1,0
92,"consulting services",1,Consulting,2,0
93,"supply & services",3,Tenders,1,0
108,landscaping,3,Tenders,0,0
99,"comprehensive development",1,Multi-family,7,0
110,"master plan",1,Consulting,0,0
111,services,1,Tenders,0,0
112,"leased space",1,Tenders,0,0
113,"mechanical, electrical & plumbing",3,Tenders,0,0
114,"land development",1,Multi-family,0,0`

// Classifier assigns project-type ids to records. Implementations
// return 0 rather than failing when no id can be determined.
type Classifier interface {
	Classify(ctx context.Context, record map[string]string) int
	Close() error
}

// GeminiClassifier calls the Gemini API with the project-type table
// and the record's fields, one record per call, pausing between calls.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	delay   time.Duration
	lastHit time.Time
}

// NewGeminiClassifier builds a classifier from an API key.
func NewGeminiClassifier(ctx context.Context, apiKey string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("classify: api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("classify: create client: %w", err)
	}
	return &GeminiClassifier{client: client, model: defaultModel, delay: callDelay}, nil
}

// Classify asks the model for the best matching project-type id.
// Any failure, from transport to parsing, yields 0.
func (c *GeminiClassifier) Classify(ctx context.Context, record map[string]string) int {
	c.throttle()

	payload, err := json.Marshal(record)
	if err != nil {
		log.Printf("classify: marshal record: %v", err)
		return 0
	}
	prompt := buildPrompt(string(payload))

	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		log.Printf("classify: generate content: %v", err)
		return 0
	}
	text, err := responseText(resp)
	if err != nil {
		log.Printf("classify: %v", err)
		return 0
	}
	return ParseProjectTypeID(text)
}

func (c *GeminiClassifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *GeminiClassifier) throttle() {
	if c.delay <= 0 {
		return
	}
	if !c.lastHit.IsZero() {
		if wait := c.delay - time.Since(c.lastHit); wait > 0 {
			time.Sleep(wait)
		}
	}
	c.lastHit = time.Now()
}

func buildPrompt(recordJSON string) string {
	var b strings.Builder
	b.WriteString("Given the following new project data, we want to determine the project type:\n\n")
	b.WriteString("Use the following csv data and return the best matching id\n\n")
	b.WriteString(projectTypesCSV)
	b.WriteString("\n\nBelow is the project data:\n\n")
	b.WriteString(recordJSON)
	b.WriteString("\n\nPlease respond in the following format:\n\n")
	b.WriteString("{\n    \"project_type_id\": <project_type_id>\n}\n")
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

var twoDigitRe = regexp.MustCompile(`\b(\d{2})\b`)

// ParseProjectTypeID extracts the id from a model response. It tries a
// fenced JSON object first, then falls back to the first two-digit
// number anywhere in the text, then to 0.
func ParseProjectTypeID(text string) int {
	if body, ok := fencedBlock(text); ok {
		var parsed struct {
			ProjectTypeID int `json:"project_type_id"`
		}
		if err := json.Unmarshal([]byte(body), &parsed); err == nil && parsed.ProjectTypeID != 0 {
			return parsed.ProjectTypeID
		}
	}
	if m := twoDigitRe.FindStringSubmatch(text); m != nil {
		var id int
		fmt.Sscanf(m[1], "%d", &id)
		return id
	}
	return 0
}

// fencedBlock returns the content of the first ```json or bare ```
// code fence. Responses without a fence are tried as-is when they look
// like a JSON object.
func fencedBlock(text string) (string, bool) {
	for _, open := range []string{"```json", "```"} {
		start := strings.Index(text, open)
		if start == -1 {
			continue
		}
		rest := text[start+len(open):]
		end := strings.Index(rest, "```")
		if end == -1 {
			continue
		}
		return strings.TrimSpace(rest[:end]), true
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}
	return "", false
}
