// Package preprocess implements the hlms template language.
//
// A template is plain shader source interleaved with directives that are
// resolved against a [property.Store] and a set of named pieces:
//
//	@pset(name, v)  @padd(name, v)  ...   property arithmetic, no output
//	@foreach(count, i, start) ... @end    repetition; @i becomes the index
//	@property(expr) ... @else ... @end    conditional blocks
//	@undefpiece(name)                     forget a piece
//	@piece(name) ... @end                 define a piece
//	@insertpiece(name)                    paste a piece
//	@counter(name)  @value(name)          print (and bump) a property
//	@set @add @sub @mul @div @mod @min @max
//
// [Parser.Parse] runs the stages in that order. Each stage can also be
// called on its own. Syntax errors are logged with the file name and line
// and reported through the returned flag; the output is best effort and
// must not be compiled when the flag is set.
package preprocess
