package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/frameplayer/internal/audio"
	"github.com/ivlev/frameplayer/internal/config"
	"github.com/ivlev/frameplayer/internal/player"
	"github.com/ivlev/frameplayer/internal/system"
)

func main() {
	configPtr := flag.String("config", "", "Путь к YAML сцены (по умолчанию: самый свежий .yaml в текущей папке)")
	outPtr := flag.String("out", "", "Папка для кадров и видео (по умолчанию: output из конфига)")
	framesPtr := flag.Float64("frames", 0, "Шаг экспорта кадров в секундах (0 - не экспортировать)")
	videoPtr := flag.String("video", "", "Путь к MP4 для офлайн-рендера (burn)")
	playPtr := flag.Bool("play", false, "Воспроизвести сцену в реальном времени со звуком")
	analysePtr := flag.Float64("analyse", -1, "Вывести уровни и спектр звука в момент времени (сек)")
	formatPtr := flag.String("format", "", "Формат кадров: jpeg, png, bmp")
	qualityPtr := flag.Int("quality", 0, "Качество JPEG 1-100 (0 - из конфига)")
	workersPtr := flag.Int("workers", 0, "Потоки кодирования кадров (0 - из конфига)")
	widthPtr := flag.Int("width", 0, "Ширина рендера (0 - из конфига)")
	heightPtr := flag.Int("height", 0, "Высота рендера (0 - из конфига)")
	statsPtr := flag.Bool("stats", false, "Показать загрузку CPU и памяти после работы")
	verbosePtr := flag.Bool("v", false, "Подробный лог")
	quietPtr := flag.Bool("q", false, "Только ошибки")

	flag.Parse()

	system.InitResourceLimits()

	configPath := *configPtr
	if configPath == "" {
		latest, err := system.FindLatest(".", ".yaml", ".yml")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Укажите сцену через -config", err)
		}
		configPath = latest
		fmt.Printf("[*] Выбрана сцена: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[-] Ошибка чтения конфига: %v", err)
	}
	applyFlags(cfg, *outPtr, *formatPtr, *qualityPtr, *workersPtr, *widthPtr, *heightPtr)
	if *verbosePtr {
		cfg.LogLevel = "debug"
	}
	if *quietPtr {
		cfg.LogLevel = "error"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Некорректная сцена:\n%v", err)
	}
	format, err := player.ParseImageFormat(cfg.Format)
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := buildScene(cfg)
	if err != nil {
		log.Fatalf("[-] Ошибка построения сцены: %v", err)
	}
	defer sc.Close()

	opts := []player.Option{player.WithLogger(logger)}
	if *playPtr {
		opts = append(opts, player.WithAudioContext(audio.SpeakerFactory))
	}
	p := player.New(cfg.Player, opts...)
	defer p.Destroy()

	bg, _ := config.ParseColor(cfg.Background)
	start := time.Now()
	err = p.Init(ctx, player.InitOptions{
		Root:       sc.root,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Background: bg,
		OnProgress: func(v float64) {
			if !*quietPtr {
				fmt.Printf("\r[>] Загрузка: %3.0f%%", v*100)
			}
		},
	})
	if !*quietPtr {
		fmt.Println()
	}
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации: %v", err)
	}
	// Растры уже в памяти, документы больше не нужны.
	sc.Close()
	fmt.Printf("[*] Сцена загружена за %v: %d узлов, длительность %.2fs\n",
		time.Since(start).Round(time.Millisecond), len(sc.root.AllNodes()), p.Duration())

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		log.Fatalf("[-] Не удалось создать папку %s: %v", cfg.Output, err)
	}

	did := false
	if *analysePtr >= 0 {
		did = true
		if err := printAnalysis(ctx, p, *analysePtr); err != nil {
			log.Fatalf("[-] Ошибка анализа звука: %v", err)
		}
	}
	if *framesPtr > 0 {
		did = true
		n, err := exportFrames(ctx, p, cfg, *framesPtr, format)
		if err != nil {
			log.Fatalf("[-] Ошибка экспорта кадров: %v", err)
		}
		fmt.Printf("[*] Сохранено кадров: %d в %s\n", n, cfg.Output)
	}
	if *videoPtr != "" {
		did = true
		out := *videoPtr
		if !filepath.IsAbs(out) && filepath.Dir(out) == "." {
			out = filepath.Join(cfg.Output, out)
		}
		if err := burnVideo(ctx, p, cfg, out); err != nil {
			log.Fatalf("[-] Ошибка рендера видео: %v", err)
		}
		fmt.Printf("[*] Видео сохранено: %s\n", out)
	}
	if *playPtr || !did {
		if err := play(ctx, p); err != nil {
			log.Fatalf("[-] Ошибка воспроизведения: %v", err)
		}
	}

	if *statsPtr {
		printStats(ctx)
	}
}

func applyFlags(cfg *config.Config, out, format string, quality, workers, width, height int) {
	if out != "" {
		cfg.Output = out
	}
	if format != "" {
		cfg.Format = format
	}
	if quality > 0 {
		cfg.Quality = quality
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if width > 0 && height > 0 {
		cfg.Width, cfg.Height = width, height
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// play runs the scene in real time until it ends or ctx is cancelled.
func play(ctx context.Context, p *player.Player) error {
	done := make(chan struct{})
	offEnded := p.On(player.EventEnded, func(player.Event) { close(done) })
	defer offEnded()

	lastSecond := -1
	offTime := p.On(player.EventTimeUpdate, func(ev player.Event) {
		if s := int(ev.CurrentTime); s != lastSecond {
			lastSecond = s
			fmt.Printf("\r[>] %6.2f / %.2fs", ev.CurrentTime, ev.Duration)
		}
	})
	defer offTime()

	if err := p.Play(); err != nil {
		return err
	}
	fmt.Println("[*] Воспроизведение (Ctrl+C для остановки)")

	select {
	case <-done:
		fmt.Println("\n[*] Воспроизведение завершено")
	case <-ctx.Done():
		fmt.Println("\n[!] Остановлено")
		return p.Pause(context.Background())
	}
	st := p.Stats()
	fmt.Printf("[*] Кадров: %d, медленных: %d, видео %v, звук %v\n",
		st.Frames, st.Slow, st.Video.Round(time.Millisecond), st.Audio.Round(time.Millisecond))
	return nil
}

func printAnalysis(ctx context.Context, p *player.Player, t float64) error {
	a, err := p.AnalyseAudio(ctx, t)
	if err != nil {
		return err
	}
	peakBin, peakDB := 0, float32(-1000)
	for i, v := range a.Spectrum {
		if v > peakDB {
			peakBin, peakDB = i, v
		}
	}
	sr := float64(p.Config().SampleRate)
	fmt.Printf("[*] Звук в %.2fs: RMS %.3f, пик %.3f, доминирующая частота %.0f Гц (%.1f дБ)\n",
		t, a.RMS, a.Peak, float64(peakBin)*sr/float64(audio.FFTSize), peakDB)
	return nil
}

func printStats(ctx context.Context) {
	u, err := system.Sample(ctx, 200*time.Millisecond)
	if err != nil {
		log.Printf("[!] Не удалось получить статистику системы: %v", err)
		return
	}
	fmt.Printf("[*] Ресурсы: %s\n", u)
}
