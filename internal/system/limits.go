package system

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// InitResourceLimits raises the open file limit; decoders and ffmpeg pipes
// keep many descriptors open during a burn.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	} else {
		fmt.Printf("[*] Системный лимит открытых файлов увеличен до %d\n", rLimit.Cur)
	}
}

// FindLatest returns the newest file in dir with one of exts.
func FindLatest(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time
	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов %s", dir, strings.Join(exts, ", "))
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	name = strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
