package logging

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// LoggerManager хранит логгеры компонентов мира и общий для них уровень
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger

	consoleLevel LogLevel
	fileLevel    LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newLoggerManager()
	})
	return globalManager
}

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers:      make(map[string]*Logger),
		consoleLevel: INFO,
		fileLevel:    DEBUG,
	}
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()
	if exists {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger for %s: %w", component, err)
	}
	logger.SetLevels(lm.consoleLevel, lm.fileLevel)
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или консольный fallback, если файл не создать
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		Default().Warn("не удалось создать логгер %s: %v", component, err)

		lm.mu.RLock()
		level := lm.consoleLevel
		lm.mu.RUnlock()
		return NewConsoleLogger(component, os.Stdout, level)
	}
	return logger
}

// SetLevels задаёт уровни для всех существующих и будущих логгеров компонентов
func (lm *LoggerManager) SetLevels(consoleLevel, fileLevel LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.consoleLevel = consoleLevel
	lm.fileLevel = fileLevel
	for _, logger := range lm.loggers {
		logger.SetLevels(consoleLevel, fileLevel)
	}
}

// SetLogLevel задаёт уровни одного уже созданного логгера
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("logger for component %s not found", component)
	}
	logger.SetLevels(consoleLevel, fileLevel)
	return nil
}

// ListComponents возвращает имена компонентов в алфавитном порядке
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// CloseAll закрывает файлы всех логгеров компонентов
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger %s: %w", component, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

// GetComponentLogger - логгер произвольного компонента
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

// GetWorldLogger - правки и жизненный цикл мира
func GetWorldLogger() *Logger {
	return GetComponentLogger("world")
}

// GetStreamLogger - стриминг чанков
func GetStreamLogger() *Logger {
	return GetComponentLogger("stream")
}

// GetAPILogger - отладочный HTTP API
func GetAPILogger() *Logger {
	return GetComponentLogger("api")
}
