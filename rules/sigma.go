package rules

import (
	"bytes"
	"fmt"

	"asrgen/hasher"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	SigmaIDMD5  = "md5"
	SigmaIDUUID = "uuid"
)

type sigmaRule struct {
	Title          string         `yaml:"title"`
	ID             string         `yaml:"id"`
	Status         string         `yaml:"status"`
	Description    string         `yaml:"description"`
	Author         string         `yaml:"author"`
	Date           string         `yaml:"date"`
	LogSource      sigmaLogSource `yaml:"logsource"`
	Detection      sigmaDetection `yaml:"detection"`
	FalsePositives []string       `yaml:"falsepositives"`
	Level          string         `yaml:"level"`
}

type sigmaLogSource struct {
	Category string `yaml:"category"`
}

// sigmaDetection keeps selection ahead of condition in the output.
type sigmaDetection struct {
	Selection map[string]string `yaml:"selection"`
	Condition string            `yaml:"condition"`
}

// sigmaID derives the rule id from the filename so reruns are stable.
func sigmaID(filename, format string) string {
	if format == SigmaIDUUID {
		return uuid.NewMD5(uuid.NameSpaceURL, []byte(filename)).String()
	}
	return hasher.StringMD5(filename)
}

func newSigmaRule(filename, author, date, idFormat string) sigmaRule {
	return sigmaRule{
		Title:       "Suspicious File - " + filename,
		ID:          sigmaID(filename, idFormat),
		Status:      "experimental",
		Description: "Detects presence of " + filename,
		Author:      author,
		Date:        date,
		LogSource:   sigmaLogSource{Category: "file_event"},
		Detection: sigmaDetection{
			Selection: map[string]string{"FileName|endswith": filename},
			Condition: "selection",
		},
		FalsePositives: []string{"Unknown"},
		Level:          "medium",
	}
}

func renderSigma(rule sigmaRule) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(rule); err != nil {
		return "", fmt.Errorf("encode sigma rule: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode sigma rule: %w", err)
	}
	return buf.String(), nil
}
