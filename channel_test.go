package main

import (
	"sync"
	"testing"
	"time"
)

func TestChannelFIFO(t *testing.T) {
	ch := NewChannel[int]()
	for i := 0; i < 100; i++ {
		ch.Put(i)
	}

	if ch.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", ch.Len())
	}

	for i := 0; i < 100; i++ {
		if got := ch.Get(); got != i {
			t.Fatalf("Get() = %d, want %d", got, i)
		}
	}
}

func TestChannelGetBlocksUntilPut(t *testing.T) {
	ch := NewChannel[string]()
	got := make(chan string, 1)

	go func() {
		got <- ch.Get()
	}()

	select {
	case v := <-got:
		t.Fatalf("Get() returned %q before any Put", v)
	case <-time.After(50 * time.Millisecond):
	}

	ch.Put("hello")

	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("Get() = %q, want %q", v, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get() did not wake up after Put")
	}
}

func TestChannelConcurrentProducersConsumers(t *testing.T) {
	const producers = 4
	const perProducer = 250

	ch := NewChannel[int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ch.Put(base + i)
			}
		}(p * perProducer)
	}

	results := make(chan int, producers*perProducer)
	var consumers sync.WaitGroup
	for c := 0; c < 3; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				v := ch.Get()
				if v < 0 {
					return
				}
				results <- v
			}
		}()
	}

	wg.Wait()
	for c := 0; c < 3; c++ {
		ch.Put(-1)
	}
	consumers.Wait()
	close(results)

	seen := make(map[int]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("value %d delivered twice", v)
		}
		seen[v] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("received %d distinct values, want %d", len(seen), producers*perProducer)
	}
}

func TestChannelPreservesOrderPerProducer(t *testing.T) {
	ch := NewChannel[Command]()
	ch.Put(DownloadCmd{LocalPath: "/tmp/a", RemotePath: "/a"})
	ch.Put(UploadCmd{LocalPath: "/tmp/a", RemotePath: "/a"})

	if _, ok := ch.Get().(DownloadCmd); !ok {
		t.Fatal("expected DownloadCmd first")
	}
	if _, ok := ch.Get().(UploadCmd); !ok {
		t.Fatal("expected UploadCmd second")
	}
}
