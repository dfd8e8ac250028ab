package rules

import (
	"strings"
	"text/template"
)

// yaraRule is the view rendered by yaraTemplate.
type yaraRule struct {
	Name        string
	Author      string
	Date        string
	Description string
	FileName    string
	Hash        string
	// FileType, FileSize, MD5 and TLSH are emitted only when set.
	FileType   string
	FileSize   *int64
	MD5        string
	TLSH       string
	Indicators []string
}

var yaraTemplate = template.Must(template.New("yara").Funcs(template.FuncMap{
	"q":   Quote,
	"inc": func(i int) int { return i + 1 },
}).Parse(`rule {{.Name}}
{
    meta:
        author = {{q .Author}}
        date = {{q .Date}}
        description = {{q .Description}}
{{- if .FileType}}
        file_type = {{q .FileType}}
{{- end}}
{{- if .FileSize}}
        file_size = {{.FileSize}}
{{- end}}
{{- if .MD5}}
        md5 = {{q .MD5}}
{{- end}}
{{- if .TLSH}}
        tlsh = {{q .TLSH}}
{{- end}}

    strings:
        $file_name = {{q .FileName}} wide ascii
        $hash = {{q .Hash}}
{{- range $i, $literal := .Indicators}}
        $indicator_{{inc $i}} = {{q $literal}} nocase
{{- end}}

    condition:
        any of them
}
`))

func renderYara(rule yaraRule) (string, error) {
	var b strings.Builder
	if err := yaraTemplate.Execute(&b, rule); err != nil {
		return "", err
	}
	return b.String(), nil
}
