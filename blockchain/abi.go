package blockchain

// FoodTraceabilityABI is the subset of the FoodTraceability contract ABI the
// client uses.
const FoodTraceabilityABI = `[
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"string","name":"productId","type":"string"},
    {"indexed":true,"internalType":"bytes32","name":"metadataHash","type":"bytes32"},
    {"indexed":true,"internalType":"address","name":"recorder","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"}],
   "name":"RecordAdded","type":"event"},
  {"inputs":[
    {"internalType":"string","name":"_productId","type":"string"},
    {"internalType":"bytes32","name":"_metadataHash","type":"bytes32"}],
   "name":"addRecord","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"_metadataHash","type":"bytes32"}],
   "name":"checkMetadataHashExists",
   "outputs":[{"internalType":"bool","name":"","type":"bool"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"_productId","type":"string"}],
   "name":"getMetadataHash",
   "outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"","type":"string"}],
   "name":"records",
   "outputs":[
    {"internalType":"bytes32","name":"metadataHash","type":"bytes32"},
    {"internalType":"address","name":"recorder","type":"address"},
    {"internalType":"uint256","name":"timestamp","type":"uint256"}],
   "stateMutability":"view","type":"function"}
]`
