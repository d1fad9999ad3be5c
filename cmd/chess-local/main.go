package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/park285/cheese-chess-rooms/internal/hotseat"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
)

func main() {
	tc := flag.String("tc", "10+0", "time control, minutes+increment")
	messagesDir := flag.String("messages", os.Getenv("MESSAGES_DIR"), "directory with message overrides")
	flag.Parse()

	msgs, err := msgcat.New(*messagesDir)
	if err != nil {
		log.Fatalf("messages: %v", err)
	}
	s := hotseat.New(*tc, os.Stdout, hotseat.WithCatalog(msgs))
	s.Help()
	s.PrintBoard(nil)

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(s.Prompt())
		if !in.Scan() {
			fmt.Println()
			return
		}
		if s.Handle(in.Text()) {
			return
		}
	}
}
