/*
Package schema describes the shape of component values stored on chain.

A component value is the ABI encoding of a tuple of fields. The schema of a component names those
fields (Keys) and gives the wire type of each (Values), positionally paired. Schemas are looked up
by component id through a Registry; the decode package compiles them into decoders.

Component and entity ids are kept as canonical lowercase hex strings with a 0x prefix and no
leading zeros (see FormatID). The zero id "0x0" is the registry sentinel.
*/
package schema
