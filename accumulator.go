package polyvox

import "strings"

// accumulator folds concluded transcript segments into per-language
// transcripts. Pure state, no I/O; the session's dispatch path is the only
// writer.
type accumulator struct {
	source  *Transcript
	targets map[string]*Transcript
	order   []string
}

func newAccumulator(sourceLanguage string, targetLanguages []string) *accumulator {
	a := &accumulator{
		source:  &Transcript{Language: sourceLanguage, Segments: []TranscriptSegment{}},
		targets: make(map[string]*Transcript, len(targetLanguages)),
		order:   append([]string(nil), targetLanguages...),
	}
	for _, lang := range targetLanguages {
		a.targets[lang] = &Transcript{Language: lang, Segments: []TranscriptSegment{}}
	}
	return a
}

// appendSegments appends concluded segments in arrival order and refreshes
// the joined text. Segments are never reordered or deduplicated; the server
// is the source of truth for what counts as new.
func appendSegments(t *Transcript, concluded []TranscriptSegment) {
	if len(concluded) == 0 {
		return
	}
	t.Segments = append(t.Segments, concluded...)
	t.Text = joinSegments(t.Segments)
}

func joinSegments(segments []TranscriptSegment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return strings.Join(texts, " ")
}

// foldSource appends concluded source segments. A non-empty detected
// language updates the source transcript's language field (auto-detect may
// revise it over the session); already-appended segments are retained
// regardless.
func (a *accumulator) foldSource(detectedLanguage string, concluded []TranscriptSegment) {
	if detectedLanguage != "" {
		a.source.Language = detectedLanguage
	}
	appendSegments(a.source, concluded)
}

// foldTarget appends concluded segments for one target language. Updates for
// a language that was not negotiated are ignored; returns false in that case.
func (a *accumulator) foldTarget(language string, concluded []TranscriptSegment) bool {
	t, ok := a.targets[language]
	if !ok {
		return false
	}
	appendSegments(t, concluded)
	return true
}

// result builds the final session result. Target transcripts appear in the
// order the target languages were requested.
func (a *accumulator) result(sessionID string) *VoiceSessionResult {
	targets := make([]*Transcript, 0, len(a.order))
	for _, lang := range a.order {
		targets = append(targets, a.targets[lang])
	}
	return &VoiceSessionResult{
		SessionID: sessionID,
		Source:    a.source,
		Targets:   targets,
	}
}
