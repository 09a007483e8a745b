package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/annel0/voxelcore/internal/api"
	"github.com/annel0/voxelcore/internal/eventbus"
	"github.com/annel0/voxelcore/internal/world"
	"github.com/annel0/voxelcore/internal/world/block"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
)

const (
	defaultServerAddr = "localhost:8088"
	timeFormat        = "15:04:05.000"
)

func main() {
	var (
		serverAddr = flag.String("server", defaultServerAddr, "voxeld REST API address")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Maximum number of events (0 - unlimited)")
		timeout    = flag.Duration("timeout", 5*time.Second, "HTTP timeout")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}

	switch *command {
	case "tail":
		if err := tailEvents(*serverAddr, parseStringList(*eventTypes), *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "stats":
		if err := showStats(client, *serverAddr); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	case "types":
		if err := showTypes(client, *serverAddr); err != nil {
			log.Fatalf("❌ Types failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}
}

// tailEvents выводит события шины в реальном времени
func tailEvents(addr string, types []string, limit int) error {
	q := url.Values{}
	for _, t := range types {
		q.Add("type", t)
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/events", RawQuery: q.Encode()}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	fmt.Printf("🎬 Tailing events from %s (limit: %d)\n", addr, limit)

	eventCount := 0
	for limit == 0 || eventCount < limit {
		var ev eventbus.Envelope
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			return fmt.Errorf("stream error: %w", err)
		}
		printEvent(&ev)
		eventCount++
	}

	fmt.Printf("\n📊 Total events: %d\n", eventCount)
	return nil
}

// showStats выводит состояние мира
func showStats(client *http.Client, addr string) error {
	var stats api.StatsResponse
	if err := getJSON(client, addr, "/api/stats", &stats); err != nil {
		return err
	}

	fmt.Println("📊 World statistics")
	fmt.Printf("Uptime: %s\n", stats.Uptime)
	fmt.Printf("Observer: (%.1f, %.1f, %.1f), chunk size %d\n", stats.Observer.X, stats.Observer.Y, stats.Observer.Z, stats.ChunkSize)
	fmt.Printf("Chunks: %d resident, %d active, %d retained\n", stats.World.Resident, stats.World.Active, stats.World.Retained)
	fmt.Printf("Queues: load %d, unload %d\n", stats.World.LoadQueue, stats.World.UnloadQueue)
	fmt.Printf("Memory: %s alloc, %s sys, %d GC\n", humanize.Bytes(stats.Memory.AllocBytes), humanize.Bytes(stats.Memory.SysBytes), stats.Memory.NumGC)
	fmt.Printf("CPU: %.1f%%\n", stats.CPUPercent)
	if stats.Bus != nil {
		fmt.Printf("Events: %s published, %s dropped\n", humanize.Comma(int64(stats.Bus.Published)), humanize.Comma(int64(stats.Bus.Dropped)))
	}
	return nil
}

// showTypes выводит каталог типов блоков
func showTypes(client *http.Client, addr string) error {
	var types []block.BlockType
	if err := getJSON(client, addr, "/api/blocks/types", &types); err != nil {
		return err
	}

	fmt.Println("📋 Block types")
	for _, t := range types {
		var flags []string
		if t.Transparent {
			flags = append(flags, "transparent")
		}
		if t.Liquid {
			flags = append(flags, "liquid")
		}
		if t.Billboard {
			flags = append(flags, "billboard")
		}
		fmt.Printf("%3d %-12s %s\n", t.ID, t.Name, strings.Join(flags, ","))
	}
	return nil
}

func getJSON(client *http.Client, addr, path string, v interface{}) error {
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n", ev.Timestamp.Local().Format(timeFormat), ev.Source, ev.EventType, ev.ID)

	switch ev.EventType {
	case eventbus.EventBlockEdited:
		var edit world.BlockEdit
		if err := ev.Decode(&edit); err == nil {
			fmt.Printf("  Block: (%d,%d,%d) %s → %s sound=%s\n",
				edit.Position.X, edit.Position.Y, edit.Position.Z, edit.From, edit.To, edit.Sound)
		}
	default:
		fmt.Printf("  %s\n", string(ev.Payload))
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
