// Package pdf extracts text and identifiers from PDFs and opens them in a
// desktop viewer.
package pdf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Opener resolves vault PDF paths and opens them in a viewer.
type Opener struct {
	pdfDir string
	reader string
}

// NewOpener creates an opener rooted at the vault's PDF directory. reader
// names a viewer ("skim", "preview", "zathura", "evince", "okular") or
// "system" for the platform default.
func NewOpener(pdfDir, reader string) *Opener {
	if reader == "" {
		reader = "system"
	}
	return &Opener{pdfDir: pdfDir, reader: reader}
}

// ResolvePath returns an existing absolute path for p. Relative paths are
// taken relative to the PDF directory.
func (o *Opener) ResolvePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("no PDF path specified")
	}

	fullPath := p
	if !filepath.IsAbs(p) {
		fullPath = filepath.Join(o.pdfDir, p)
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("PDF not found: %s", fullPath)
		}
		return "", fmt.Errorf("checking PDF: %w", err)
	}
	return fullPath, nil
}

// Command returns the viewer command for fullPath on the current platform.
func (o *Opener) Command(fullPath string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return o.darwinCommand(fullPath), nil
	case "linux":
		return o.linuxCommand(fullPath), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Open starts the viewer on fullPath without waiting for it to exit.
func (o *Opener) Open(fullPath string) error {
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PDF file does not exist: %s", fullPath)
		}
		return fmt.Errorf("checking PDF file: %w", err)
	}

	cmd, err := o.Command(fullPath)
	if err != nil {
		return err
	}
	return cmd.Start()
}

func (o *Opener) darwinCommand(path string) *exec.Cmd {
	switch o.reader {
	case "skim":
		return exec.Command("open", "-a", "Skim", path)
	case "preview":
		return exec.Command("open", "-a", "Preview", path)
	default:
		return exec.Command("open", path)
	}
}

func (o *Opener) linuxCommand(path string) *exec.Cmd {
	switch o.reader {
	case "zathura", "evince", "okular":
		return exec.Command(o.reader, path)
	default:
		return exec.Command("xdg-open", path)
	}
}
