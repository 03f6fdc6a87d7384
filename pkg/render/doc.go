// Package render turns diagram sources into artifact files by running the
// external Mermaid CLI.
//
// # Overview
//
// A [Renderer] maps a [diagram.Source] and a target format to a file named
// `<prefix>-<digest>.<ext>` in the image directory, where the digest comes from
// a [cache.Keyer]. The file's existence is the only reuse test: when it exists
// no subprocess runs.
//
// On a miss the renderer:
//
//  1. Collapses concurrent requests for the same file in this process.
//  2. Consults the optional artifact mirror ([cache.Cache]).
//  3. Writes the source to a private temporary directory inside the image
//     directory and runs `cmd [params...] -i <in> -o <out> [--configFile <f>]`,
//     also feeding the source on stdin.
//  4. Places the output with a hard link, so a racing writer in another
//     process can never expose a partial file.
//
// # Failures
//
// A missing tool binary is recoverable: it is logged once per [BuildContext],
// the request yields a zero [Artifact] and later requests for the same command
// return immediately. A non-zero exit, or an exit without an output file, is a
// RENDER_FAILED error carrying the captured stderr and stdout.
//
// Subprocesses are bound to the request context. Cancelling it kills the tool
// and its process group.
//
// # Cropping
//
// [Renderer.Crop] post-processes PDFs through a crop utility such as pdfcrop
// with the same failure taxonomy.
package render
