package ui

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

func (m *model) initWatcher() {
	path, err := filepath.Abs(m.cfg.Path)
	if err != nil {
		log.Error("cannot resolve watched file", "path", m.cfg.Path, "error", err)
		return
	}
	m.cfg.Path = path

	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
		return
	}
	if err := m.watcher.Add(m.localDir()); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		_ = m.watcher.Close()
		m.watcher = nil
		return
	}
	log.Info("fsnotify watching dir", "dir", m.localDir())
}

// watchFile blocks until the input file is written, then reads it back.
// Editors that save by rename show up as Create.
func (m model) watchFile() tea.Msg {
	if m.watcher == nil {
		return nil
	}

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != m.cfg.Path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			data, err := os.ReadFile(m.cfg.Path)
			if err != nil {
				return errMsg{err}
			}
			return reloadMsg{text: string(data)}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", m.localDir(), "error", err)
		}
	}
}

func (m *model) unwatchFile() {
	if m.watcher == nil {
		return
	}
	if err := m.watcher.Close(); err == nil {
		log.Debug("fsnotify watcher closed", "dir", m.localDir())
	} else {
		log.Error("fsnotify fail to close watcher", "dir", m.localDir(), "error", err)
	}
	m.watcher = nil
}

func (m model) localDir() string {
	return filepath.Dir(m.cfg.Path)
}
