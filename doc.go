// Package polyvox provides a Go client for the Polyvox hosted translation
// service, centered on real-time speech translation over WebSocket.
//
// A voice session turns a local audio source into a live bidirectional
// stream: audio chunks go up, incremental source and target transcripts come
// back, and the session survives mid-stream disconnects by renewing its
// credential and reconnecting, up to a bounded number of attempts.
//
// # Quick Start
//
// Open an audio file, pace it to approximate real time and run a session:
//
//	client := polyvox.NewVoiceClient(polyvox.ClientOptions{
//	    APIKey: "your-api-key",
//	})
//
//	source, err := polyvox.NewFileChunkSource("speech.wav", polyvox.DefaultChunkSize)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	paced := polyvox.NewChunkPacer(source, polyvox.DefaultChunkInterval)
//
//	result, err := client.Run(ctx, paced, polyvox.SessionOptions{
//	    TargetLanguages: []string{"de", "fr"},
//	    ContentType:     "audio/wav",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Source.Text)
//	for _, t := range result.Targets {
//	    fmt.Printf("[%s] %s\n", t.Language, t.Text)
//	}
//
// # Live Updates
//
// Register observer callbacks to render transcripts as they arrive. Concluded
// segments are final and accumulate into the result; tentative segments are
// provisional, shown for live feedback only and never persisted:
//
//	opts := polyvox.SessionOptions{
//	    TargetLanguages: []string{"de"},
//	    ContentType:     "audio/wav",
//	    OnTargetTranscript: func(u *polyvox.TargetTranscriptUpdate) {
//	        for _, seg := range u.Concluded {
//	            fmt.Println(seg.Text)
//	        }
//	    },
//	}
//
// # Stopping a Session
//
// Stop asks for a graceful finish: the end-of-media marker is sent and the
// server flushes its final transcripts before ending the stream, so an
// interrupted session still yields whatever was concluded. Cancel abandons
// the session immediately and Run fails with a canceled error.
//
// # Errors
//
// All failures are *polyvox.Error values carrying a typed status
// (validation_error, invalid_streaming_url, negotiation_error,
// voice_stream_error, unexpected_close, io_error, canceled):
//
//	if polyvox.IsErrorStatus(err, polyvox.ErrorStatusUnexpectedClose) {
//	    // connection lost and reconnect attempts exhausted
//	}
package polyvox
