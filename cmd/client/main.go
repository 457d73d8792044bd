package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"anon_messenger/internal/service/app"
)

func main() {
	host := flag.String("server", "localhost:9090", "relay server host:port")
	flag.Parse()

	client := app.NewApp(*host)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-done
		client.Stop()
		os.Exit(0)
	}()

	client.Run()
	client.Stop()
}
