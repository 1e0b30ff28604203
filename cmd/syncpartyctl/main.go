package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/samber/lo"

	"sync-party/internal/config"
	"sync-party/internal/logging"
	"sync-party/internal/models"
	"sync-party/internal/player"
	"sync-party/internal/syncclient"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	client := syncclient.NewClient(httpClient, cfg.ServerURL)
	store := syncclient.NewDeviceStore(cfg.StateDir)
	p := player.NewLocalPlayer()

	m, err := syncclient.NewManager(client, store, p, log, syncclient.DefaultConfig())
	if err != nil {
		log.Errorf("init participant: %v", err)
		os.Exit(1)
	}
	// Host pushes ride on local transport changes.
	p.SetOnChange(m.NotifyLocalChange)

	ended := make(chan string, 1)
	m.SetOnSessionEnded(func(reason string) {
		select {
		case ended <- reason:
		default:
		}
	})

	ctx := context.Background()
	if err := m.RefreshLibrary(ctx); err != nil {
		log.Warnf("load library: %v", err)
	}

	switch argAt(1) {
	case "host":
		code, err := m.CreateSession(ctx)
		if err != nil {
			log.Errorf("open room: %v", err)
			os.Exit(1)
		}
		fmt.Printf("room %s is open, share the code\n", code)
	case "join":
		code := argAt(2)
		if code == "" {
			usage()
		}
		if err := m.JoinSession(ctx, code); err != nil {
			if msg := m.LastError(); msg != "" {
				log.Errorf("%s", msg)
			} else {
				log.Errorf("join room: %v", err)
			}
			os.Exit(1)
		}
		fmt.Printf("joined room %s as %s\n", m.Code(), m.Role())
	case "resume":
		ok, err := m.Resume(ctx)
		if err != nil {
			log.Errorf("resume: %v", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("no room to resume")
			return
		}
		fmt.Printf("back in room %s as %s\n", m.Code(), m.Role())
	default:
		usage()
	}

	go console(m, p)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case reason := <-ended:
		fmt.Println(reason)
	case <-quit:
	}

	leaveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Leave(leaveCtx); err != nil {
		log.Warnf("leave room: %v", err)
	}
}

// console drives the local player from stdin. Every transport change lands
// in the manager through the player's change callback.
func console(m *syncclient.Manager, p *player.LocalPlayer) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "play":
			if len(fields) < 2 {
				p.SetPlaying(true)
				continue
			}
			track, ok := lo.Find(p.Tracks(), func(t models.Track) bool { return t.ID == fields[1] })
			if !ok {
				fmt.Println("unknown track, try: tracks")
				continue
			}
			p.Play(track)
		case "pause":
			p.SetPlaying(false)
		case "seek":
			if len(fields) < 2 {
				fmt.Println("seek wants seconds")
				continue
			}
			sec, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Println("seek wants seconds")
				continue
			}
			p.Seek(sec)
		case "tracks":
			for _, t := range p.Tracks() {
				fmt.Printf("%s  %s\n", t.ID, t.Title)
			}
		case "status":
			snap := p.Snapshot()
			fmt.Printf("room=%s role=%s track=%s playing=%v position=%.1fs\n",
				m.Code(), m.Role(), snap.TrackID, snap.IsPlaying, snap.Position)
		default:
			fmt.Println("commands: play [trackId], pause, seek <seconds>, tracks, status")
		}
	}
}

func argAt(i int) string {
	if len(os.Args) <= i {
		return ""
	}
	return strings.TrimSpace(os.Args[i])
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: syncpartyctl host | join <code> | resume")
	os.Exit(2)
}
