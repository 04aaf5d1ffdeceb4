package main

import (
	"context"
	"log"
	"os"

	"github.com/unimart/unimart/pkg/unimart"
)

func main() {
	if err := unimart.Main(context.Background(), os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
