// Package camlink provides the high-level API of the camera push client.
//
// It ties together the lower-level components (store, secure channel,
// session manager, dispatcher, push pipeline, token handler, download task
// and notifier) into a single App.
//
// # Creating an App
//
//	app, err := camlink.New(camlink.Config{
//	    Store:    store.NewMemoryStore(),
//	    Channel:  bridge,
//	    FilesDir: "/var/lib/camlink",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	// Install configuration
//	app.Configure(ctx, "203.0.113.7", credentials)
//
//	// Pair a camera, then feed it pushes and token rotations
//	app.Pair(ctx, "porch", "192.168.1.40", secret)
//	res := app.HandlePush(ctx, payload)
//	app.OnNewToken(ctx, token)
//
// # Testing
//
// SimulatedConfig returns a Config backed by an in-memory store and a
// channel.Simulator, with the install configuration already present:
//
//	cfg, sim := camlink.SimulatedConfig()
//	app, _ := camlink.New(cfg)
//	app.Pair(ctx, "cam1", "10.0.0.2", nil)
//	sim.InitializeCount("cam1", true) // 1
package camlink
