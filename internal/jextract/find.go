package jextract

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// findExecutable attempts to find the jextract launcher on the system
func findExecutable() string {
	if exe := os.Getenv("JEXTRACT"); exe != "" {
		return exe
	}

	name := "jextract"
	if runtime.GOOS == "windows" {
		name = "jextract.bat"
	}

	if home := os.Getenv("JEXTRACT_HOME"); home != "" {
		path := filepath.Join(home, "bin", name)
		if stat, err := os.Stat(path); err == nil && !stat.IsDir() {
			return path
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}
