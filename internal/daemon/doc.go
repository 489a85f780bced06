// Package daemon runs the roster as a long-lived process.
//
// The daemon:
//  1. Starts the controller, which performs the startup pull
//  2. Watches an inbox directory for *.json patch files
//  3. Applies each patch through the controller once writes settle
//  4. Optionally pulls on an interval and exports scheduled backups
//  5. Drains queued pushes on shutdown
//
// # Inbox files
//
// An inbox file holds a partial Dataset: any subset of the top-level
// collections and the settings record. Present keys replace the stored
// collection wholesale; absent keys are left alone.
//
//	{
//	  "students": [
//	    {"id": "s-1", "name": "Ayu", "class": "7A"}
//	  ]
//	}
//
// Applied files are moved to <inbox>/processed. Files that do not decode,
// or that would leave the Dataset invalid, are moved to <inbox>/failed.
//
// # Usage
//
//	d, err := daemon.New(ctrl, inboxDir, nil)
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return d.Start(ctx)
package daemon
