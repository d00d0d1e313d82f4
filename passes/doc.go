// Package passes provides ready-made frame graph passes for a typical HDR
// pipeline: scene rendering, bloom, tonemapping, fullscreen effects, a
// luminance histogram and texture blits.
//
// Every pass builds its GPU objects lazily on first use, from WGSL that is
// compiled to SPIR-V with naga, and keeps bind groups in caches keyed by
// framegraph.DerivedKey so they are rebuilt only when a resource they
// reference is resized or moved to another allocation. Call Release on a
// pass once its device goes away.
//
// A minimal HDR frame:
//
//	scene := g.AddPass(&passes.ScenePass{Label: "scene", Color: hdr, Depth: depth, Draw: drawScene})
//	bloom := passes.NewBloom("bloom", hdr, scratch, glow)
//	g.AddPass(bloom)
//	tonemap := passes.NewTonemap("tonemap", hdr, glow, swapchain)
//	g.AddPass(tonemap)
//
// Setting tonemap.UseBloom to false stops the bloom read, and the next
// compile culls the bloom pass.
package passes
