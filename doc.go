// Package framegraph compiles and executes GPU frame graphs.
//
// # Overview
//
// A frame graph is a set of passes that declare which resources they read
// and write. From those declarations alone framegraph derives the execution
// order, drops passes whose output never reaches an externally visible
// resource, lets transient resources with disjoint lifetimes share one
// physical allocation, and picks load/store ops for every attachment.
//
// The core never issues draw calls. It decides when a pass runs and into
// what it may write; the pass records its own commands into the scoped
// encoder it is handed.
//
// # Quick Start
//
//	dev, _ := framegraph.NewDevice(halDevice, halQueue)
//	g := framegraph.New()
//
//	hdr, _ := framegraph.NewColor("hdr").
//	    Format(gputypes.TextureFormatRGBA16Float).
//	    Size(1920, 1080).
//	    Register(g)
//	swap, _ := framegraph.NewColor("swapchain").
//	    Format(gputypes.TextureFormatBGRA8Unorm).
//	    Size(1920, 1080).
//	    External().
//	    Register(g)
//
//	g.AddPass(scene)   // writes hdr
//	g.AddPass(tonemap) // reads hdr, writes swap
//
//	g.BindTexture(swap, surfaceTexture, surfaceView)
//	cmds, err := g.Render(dev)
//	if err != nil {
//	    return err
//	}
//	dev.Submit(cmds)
//
// # Resources
//
// Resources are Transient (graph owned, may be aliased), External
// (caller owned, e.g. the swapchain; never aliased, always considered read
// after the frame) or Imported (caller owned, tracked for dependencies but
// never reallocated). Every descriptor change bumps the resource version;
// executing a [CompiledGraph] built against an older version fails with
// [ErrStaleGraph].
//
// # Conditional passes
//
// Reads and writes are queried fresh on every compile. A pass that stops
// reading a resource because a feature flag was switched off causes the
// producer of that resource to be culled on the next compile, with no edit
// to the pass list.
//
// # Logging
//
// framegraph is silent by default. Call [SetLogger] to route compile and
// allocation diagnostics to a [log/slog] logger.
package framegraph
