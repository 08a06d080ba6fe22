// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package diskcache persists what an engine spends time building, so the
// next run starts warm.
//
// Two caches live here:
//
//   - The pipeline cache prefix: a fixed 48-byte header written in front
//     of a driver's opaque pipeline cache blob. It identifies the GPU and
//     driver the blob came from and carries an FNV-1a hash of the whole
//     file, so a stale or truncated blob is rejected instead of handed to
//     the driver.
//
//   - The shader code cache: the merged properties, pieces and generated
//     sources of every shader code entry of an engine, encoded with
//     msgpack. Loading it recompiles the sources without running the
//     preprocessor.
//
// A rejected cache is never fatal; callers log the error and start cold.
package diskcache
