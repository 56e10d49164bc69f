package builder

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	ferrors "git.home.luguber.info/inful/songbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/songbuilder/internal/logfields"
)

// Templates use (* *) delimiters so LaTeX braces never need escaping.
const (
	leftDelim  = "(*"
	rightDelim = "*)"
)

const defaultTemplate = `\documentclass[a4paper]{article}
\usepackage[(* .Lang *)]{babel}
\usepackage[chorded]{songs}
\newindex{titleidx}{(* .Basename *)_title}
\newauthorindex{authidx}{(* .Basename *)_auth}
\title{(* latex .Title *)}
\author{(* latex .Author *)}
\begin{document}
\maketitle
\showindex{Songs}{titleidx}
\showindex{Authors}{authidx}
\begin{songs}{titleidx,authidx}
(* range .Songs *)\input{(* .Path *)}
(* end *)\end{songs}
\end{document}
`

// texData is the data available to songbook templates.
type texData struct {
	Title      string
	Author     string
	Lang       string
	Basename   string
	DataDirs   []string
	Songs      []Song
	Descriptor map[string]any
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

func latexEscape(s string) string { return latexEscaper.Replace(s) }

// buildTex renders <basename>.tex from the descriptor and the songs found in
// the datadirs.
func (b *SongbookBuilder) buildTex() error {
	datadirs := b.desc.DataDirs()
	patterns, err := contentPatterns(b.desc)
	if err != nil {
		return err
	}
	songs, err := findSongs(datadirs, patterns)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		b.logger.Warn("No songs matched the content patterns", logfields.DataDir(datadirs))
	}

	tmpl, err := b.loadTemplate(datadirs)
	if err != nil {
		return err
	}

	data := texData{
		Title:      b.stringOr(keyTitle, b.basename),
		Author:     b.stringOr(keyAuthor, ""),
		Lang:       b.stringOr(keyLang, "english"),
		Basename:   b.basename,
		DataDirs:   datadirs,
		Songs:      songs,
		Descriptor: b.desc,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return ferrors.BuildError("render songbook template").WithCause(err).Build()
	}

	out := b.artifact(".tex")
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return ferrors.FileSystemError("create output directory").WithCause(err).Build()
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o600); err != nil {
		return ferrors.FileSystemError("write tex file").WithCause(err).
			WithContext("path", out).Build()
	}
	b.logger.Info("Wrote LaTeX source", logfields.Path(out), "songs", len(songs))
	return nil
}

func (b *SongbookBuilder) loadTemplate(datadirs []string) (*template.Template, error) {
	t := template.New("songbook").Delims(leftDelim, rightDelim).
		Funcs(template.FuncMap{"latex": latexEscape})

	name, ok := b.desc.String(keyTemplate)
	if !ok || name == "" {
		return t.Parse(defaultTemplate)
	}
	path, found := findTemplate(datadirs, name, fileExists)
	if !found {
		return nil, ferrors.NotFoundError("template not found in datadirs").
			WithContext("template", name).Build()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.FileSystemError("read template").WithCause(err).
			WithContext("path", path).Build()
	}
	parsed, err := t.Parse(string(src))
	if err != nil {
		return nil, ferrors.BuildError("parse template").WithCause(err).
			WithContext("path", path).Build()
	}
	return parsed, nil
}

func (b *SongbookBuilder) stringOr(key, fallback string) string {
	if v, ok := b.desc.String(key); ok && v != "" {
		return v
	}
	return fallback
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
