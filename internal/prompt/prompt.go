package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	FileName = "ARA.md"
	Default  = "You are Ara, a conversational research assistant.\n\nBehavior guidelines:\n- Answer directly from your own knowledge when the question is not time-sensitive.\n- When the user asks about current events, recent developments, or anything involving words like 'latest', 'today', 'recent', or 'news', use the search tools instead of answering from memory.\n- Use web_search for general questions, news_search for current events, and research_search for in-depth topics.\n- When a document has been uploaded to this conversation, use document_search to ground your answer in it before answering from memory.\n- Cite the titles and URLs of sources you used.\n- Be concise and structure longer answers with Markdown headings and bullet points."
)

// System assembles the system instruction for a turn: the persona
// (ARA.md from a parent directory when present, built-in default
// otherwise) plus the current date.
func System(now time.Time) string {
	persona, err := ReadFromDisk()
	if err != nil || persona == "" {
		persona = Default
	}
	return fmt.Sprintf("%s\n\nCurrent date: %s", persona, now.UTC().Format("Monday, January 2, 2006"))
}

func ReadFromDisk() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := findInParents(cwd, FileName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func findInParents(startDir string, filename string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
